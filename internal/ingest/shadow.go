package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"siteguard/internal/model"
	"siteguard/internal/mqtt"
	"siteguard/internal/storage"
)

// StartShadow subscribes to device shadow reported-state updates and keeps
// the sensor registry current. Registration is idempotent, so repeated
// reports from reconnecting devices are harmless.
func StartShadow(ctx context.Context, client *mqtt.Client, topic string, store storage.Store, logger *slog.Logger) error {
	if client == nil {
		if logger != nil {
			logger.Info("shadow ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("shadow ingest enabled", "topic", topic)
	}
	return client.Subscribe(topic, 1, func(topic string, payload []byte) error {
		var report struct {
			Reported struct {
				SensorID    string `json:"sensor_id"`
				Kind        string `json:"kind"`
				ZoneID      string `json:"zone_id"`
				EquipmentID string `json:"equipment_id"`
			} `json:"reported"`
		}
		if err := json.Unmarshal(payload, &report); err != nil {
			if logger != nil {
				logger.Warn("shadow report dropped", "topic", topic, "err", err)
			}
			return nil
		}
		if report.Reported.SensorID == "" {
			return nil
		}
		info := model.SensorInfo{
			SensorID:    report.Reported.SensorID,
			Kind:        model.SensorKind(report.Reported.Kind),
			ZoneID:      report.Reported.ZoneID,
			EquipmentID: report.Reported.EquipmentID,
		}
		if err := store.RegisterSensor(ctx, info); err != nil {
			if logger != nil {
				logger.Warn("sensor registration failed", "sensor_id", info.SensorID, "err", err)
			}
		}
		return nil
	})
}
