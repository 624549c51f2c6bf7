package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"siteguard/internal/config"
	"siteguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error

	SaveIncident(ctx context.Context, inc model.Incident) error
	AckIncident(ctx context.Context, id string) error
	UnreadIncidents(ctx context.Context) (int, error)
	RecentIncidents(ctx context.Context, limit int) ([]model.Incident, error)

	SaveNotification(ctx context.Context, rec model.NotificationRecord) error
	SaveControlAction(ctx context.Context, action model.ControlAction) error

	// RegisterSensor is idempotent: re-registering a known sensor is a
	// no-op, not an error (duplicate shadow updates are expected).
	RegisterSensor(ctx context.Context, info model.SensorInfo) error
	ListSensors(ctx context.Context) ([]model.SensorInfo, error)

	OpenMaintenance(ctx context.Context, equipmentID string) (model.MaintenanceRecord, bool, error)
	InsertMaintenance(ctx context.Context, rec model.MaintenanceRecord) (int64, error)
	UpdatePredictedDate(ctx context.Context, id int64, date time.Time) error
	CloseMaintenance(ctx context.Context, equipmentID string, actual time.Time) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return NewMemory(), nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanIncidents(rows *sql.Rows) ([]model.Incident, error) {
	var out []model.Incident
	for rows.Next() {
		var inc model.Incident
		var kind string
		var level int
		if err := rows.Scan(&inc.ID, &kind, &inc.TargetID, &inc.ZoneID, &level,
			&inc.MeasuredValue, &inc.Description, &inc.DetectedAt, &inc.Acknowledged); err != nil {
			return nil, err
		}
		inc.TargetKind = model.TargetKind(kind)
		inc.DangerLevel = model.RiskLevel(level)
		out = append(out, inc)
	}
	return out, rows.Err()
}

func scanSensors(rows *sql.Rows) ([]model.SensorInfo, error) {
	var out []model.SensorInfo
	for rows.Next() {
		var info model.SensorInfo
		var kind string
		if err := rows.Scan(&info.SensorID, &kind, &info.ZoneID, &info.EquipmentID); err != nil {
			return nil, err
		}
		info.Kind = model.SensorKind(kind)
		out = append(out, info)
	}
	return out, rows.Err()
}
