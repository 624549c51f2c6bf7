package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"siteguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/siteguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			target_kind TEXT NOT NULL,
			target_id TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			danger_level INTEGER NOT NULL,
			measured_value DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_detected ON incidents(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_ack ON incidents(acknowledged)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			channel TEXT NOT NULL,
			target TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			trigger_kind TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			incident_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS control_actions (
			id BIGSERIAL PRIMARY KEY,
			zone_id TEXT NOT NULL,
			sensor_id TEXT NOT NULL,
			sensor_kind TEXT NOT NULL,
			device_class TEXT NOT NULL,
			measured DOUBLE PRECISION NOT NULL,
			target DOUBLE PRECISION NOT NULL,
			tolerance DOUBLE PRECISION NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sensors (
			sensor_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			equipment_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS maintenance_history (
			id BIGSERIAL PRIMARY KEY,
			equipment_id TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			predicted_date DATE NOT NULL,
			actual_date DATE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_open ON maintenance_history(equipment_id) WHERE actual_date IS NULL`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveIncident(ctx context.Context, inc model.Incident) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents (id, target_kind, target_id, zone_id, danger_level, measured_value, description, detected_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inc.ID,
		string(inc.TargetKind),
		inc.TargetID,
		inc.ZoneID,
		int(inc.DangerLevel),
		inc.MeasuredValue,
		inc.Description,
		inc.DetectedAt.UTC(),
		inc.Acknowledged,
	)
	return err
}

func (s *postgresStore) AckIncident(ctx context.Context, id string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET acknowledged = TRUE WHERE id = $1`, id)
	return err
}

func (s *postgresStore) UnreadIncidents(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE acknowledged = FALSE`).Scan(&count)
	return count, err
}

func (s *postgresStore) RecentIncidents(ctx context.Context, limit int) ([]model.Incident, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_kind, target_id, zone_id, danger_level, measured_value, description, detected_at, acknowledged
		FROM incidents ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (s *postgresStore) SaveNotification(ctx context.Context, rec model.NotificationRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (channel, target, success, trigger_kind, ts, incident_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Channel,
		rec.Target,
		rec.Success,
		string(rec.Trigger),
		rec.Timestamp.UTC(),
		nullString(rec.IncidentID),
	)
	return err
}

func (s *postgresStore) SaveControlAction(ctx context.Context, action model.ControlAction) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO control_actions (zone_id, sensor_id, sensor_kind, device_class, measured, target, tolerance, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		action.ZoneID,
		action.SensorID,
		string(action.SensorKind),
		string(action.DeviceClass),
		action.Measured,
		action.Target,
		action.Tolerance,
		action.IssuedAt.UTC(),
	)
	return err
}

func (s *postgresStore) RegisterSensor(ctx context.Context, info model.SensorInfo) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensors (sensor_id, kind, zone_id, equipment_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sensor_id) DO NOTHING`,
		info.SensorID,
		string(info.Kind),
		info.ZoneID,
		nullString(info.EquipmentID),
	)
	return err
}

func (s *postgresStore) ListSensors(ctx context.Context) ([]model.SensorInfo, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sensor_id, kind, zone_id, COALESCE(equipment_id, '') FROM sensors ORDER BY sensor_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSensors(rows)
}

func (s *postgresStore) OpenMaintenance(ctx context.Context, equipmentID string) (model.MaintenanceRecord, bool, error) {
	if s.db == nil {
		return model.MaintenanceRecord{}, false, nil
	}
	var rec model.MaintenanceRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, equipment_id, zone_id, predicted_date
		FROM maintenance_history WHERE equipment_id = $1 AND actual_date IS NULL
		ORDER BY id DESC LIMIT 1`, equipmentID).
		Scan(&rec.ID, &rec.EquipmentID, &rec.ZoneID, &rec.PredictedDate)
	if err == sql.ErrNoRows {
		return model.MaintenanceRecord{}, false, nil
	}
	if err != nil {
		return model.MaintenanceRecord{}, false, err
	}
	return rec, true, nil
}

func (s *postgresStore) InsertMaintenance(ctx context.Context, rec model.MaintenanceRecord) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO maintenance_history (equipment_id, zone_id, predicted_date)
		VALUES ($1, $2, $3) RETURNING id`,
		rec.EquipmentID,
		rec.ZoneID,
		rec.PredictedDate,
	).Scan(&id)
	return id, err
}

func (s *postgresStore) UpdatePredictedDate(ctx context.Context, id int64, date time.Time) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_history SET predicted_date = $1 WHERE id = $2`, date, id)
	return err
}

func (s *postgresStore) CloseMaintenance(ctx context.Context, equipmentID string, actual time.Time) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_history SET actual_date = $1
		WHERE equipment_id = $2 AND actual_date IS NULL`, actual, equipmentID)
	return err
}
