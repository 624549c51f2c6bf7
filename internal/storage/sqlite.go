package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"siteguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:siteguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
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
			measured_value REAL NOT NULL,
			description TEXT NOT NULL,
			detected_at TIMESTAMP NOT NULL,
			acknowledged INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_detected ON incidents(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_ack ON incidents(acknowledged)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel TEXT NOT NULL,
			target TEXT NOT NULL,
			success INTEGER NOT NULL,
			trigger_kind TEXT NOT NULL,
			ts TIMESTAMP NOT NULL,
			incident_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS control_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			zone_id TEXT NOT NULL,
			sensor_id TEXT NOT NULL,
			sensor_kind TEXT NOT NULL,
			device_class TEXT NOT NULL,
			measured REAL NOT NULL,
			target REAL NOT NULL,
			tolerance REAL NOT NULL,
			issued_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sensors (
			sensor_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			equipment_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS maintenance_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			equipment_id TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			predicted_date TIMESTAMP NOT NULL,
			actual_date TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_equip ON maintenance_history(equipment_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveIncident(ctx context.Context, inc model.Incident) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents (id, target_kind, target_id, zone_id, danger_level, measured_value, description, detected_at, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) AckIncident(ctx context.Context, id string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET acknowledged = 1 WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) UnreadIncidents(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE acknowledged = 0`).Scan(&count)
	return count, err
}

func (s *sqliteStore) RecentIncidents(ctx context.Context, limit int) ([]model.Incident, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_kind, target_id, zone_id, danger_level, measured_value, description, detected_at, acknowledged
		FROM incidents ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (s *sqliteStore) SaveNotification(ctx context.Context, rec model.NotificationRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (channel, target, success, trigger_kind, ts, incident_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Channel,
		rec.Target,
		rec.Success,
		string(rec.Trigger),
		rec.Timestamp.UTC(),
		nullString(rec.IncidentID),
	)
	return err
}

func (s *sqliteStore) SaveControlAction(ctx context.Context, action model.ControlAction) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO control_actions (zone_id, sensor_id, sensor_kind, device_class, measured, target, tolerance, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) RegisterSensor(ctx context.Context, info model.SensorInfo) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sensors (sensor_id, kind, zone_id, equipment_id)
		VALUES (?, ?, ?, ?)`,
		info.SensorID,
		string(info.Kind),
		info.ZoneID,
		nullString(info.EquipmentID),
	)
	return err
}

func (s *sqliteStore) ListSensors(ctx context.Context) ([]model.SensorInfo, error) {
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

func (s *sqliteStore) OpenMaintenance(ctx context.Context, equipmentID string) (model.MaintenanceRecord, bool, error) {
	if s.db == nil {
		return model.MaintenanceRecord{}, false, nil
	}
	var rec model.MaintenanceRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, equipment_id, zone_id, predicted_date
		FROM maintenance_history WHERE equipment_id = ? AND actual_date IS NULL
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

func (s *sqliteStore) InsertMaintenance(ctx context.Context, rec model.MaintenanceRecord) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_history (equipment_id, zone_id, predicted_date)
		VALUES (?, ?, ?)`,
		rec.EquipmentID,
		rec.ZoneID,
		rec.PredictedDate,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) UpdatePredictedDate(ctx context.Context, id int64, date time.Time) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_history SET predicted_date = ? WHERE id = ?`, date, id)
	return err
}

func (s *sqliteStore) CloseMaintenance(ctx context.Context, equipmentID string, actual time.Time) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_history SET actual_date = ?
		WHERE equipment_id = ? AND actual_date IS NULL`, actual, equipmentID)
	return err
}
