package autocontrol

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"siteguard/internal/broadcast"
	"siteguard/internal/config"
	"siteguard/internal/model"
	"siteguard/internal/storage"
)

// CommandPublisher publishes a device command; satisfied by mqtt.Client.
type CommandPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Evaluator decides whether automatic equipment control should fire for a
// non-normal reading. It is independent of alarm dispatch: a reading may
// trigger control, alarms, both or neither.
type Evaluator struct {
	cfg         config.ControlConfig
	topicPrefix string
	publisher   CommandPublisher
	store       storage.Store
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
}

func New(cfg config.ControlConfig, topicPrefix string, publisher CommandPublisher, store storage.Store, broadcaster *broadcast.Broadcaster, logger *slog.Logger) *Evaluator {
	if topicPrefix == "" {
		topicPrefix = "control"
	}
	return &Evaluator{
		cfg:         cfg,
		topicPrefix: topicPrefix,
		publisher:   publisher,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Evaluate checks the reading against the member's configured target band.
// Members with no configured target are skipped silently. Returns the
// action taken, if any.
func (e *Evaluator) Evaluate(ctx context.Context, reading model.Reading, level model.RiskLevel) (model.ControlAction, bool) {
	if !e.cfg.Enabled || level == model.LevelNormal {
		return model.ControlAction{}, false
	}
	band, ok := e.band(reading)
	if !ok {
		return model.ControlAction{}, false
	}
	if reading.Value >= band.Target-band.Tolerance && reading.Value <= band.Target+band.Tolerance {
		return model.ControlAction{}, false
	}

	action := model.ControlAction{
		ZoneID:      reading.ZoneID,
		SensorID:    reading.SensorID,
		SensorKind:  reading.SensorKind,
		DeviceClass: DeviceClassFor(reading.SensorKind),
		Measured:    reading.Value,
		Target:      band.Target,
		Tolerance:   band.Tolerance,
		IssuedAt:    time.Now().UTC(),
	}

	if e.store != nil {
		if err := e.store.SaveControlAction(ctx, action); err != nil && e.logger != nil {
			e.logger.Error("control action persist failed", "sensor_id", action.SensorID, "err", err)
		}
	}
	if e.broadcaster != nil {
		e.broadcaster.ControlStatus(ctx, action)
	}
	e.publishCommand(action)

	if e.logger != nil {
		e.logger.Info("control action issued",
			"zone_id", action.ZoneID,
			"sensor_id", action.SensorID,
			"device_class", action.DeviceClass,
			"measured", action.Measured,
			"target", action.Target,
		)
	}
	return action, true
}

func (e *Evaluator) band(reading model.Reading) (config.TargetBand, bool) {
	if band, ok := e.cfg.SensorTargets[reading.SensorID]; ok {
		return band, true
	}
	band, ok := e.cfg.Targets[string(reading.SensorKind)]
	return band, ok
}

func (e *Evaluator) publishCommand(action model.ControlAction) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(action)
	if err != nil {
		return
	}
	topic := e.topicPrefix + "/" + action.ZoneID + "/" + string(action.DeviceClass)
	if err := e.publisher.Publish(topic, 1, false, payload); err != nil && e.logger != nil {
		e.logger.Warn("device command publish failed", "topic", topic, "err", err)
	}
}

// DeviceClassFor maps a sensor kind to the equipment class that counteracts
// it.
func DeviceClassFor(kind model.SensorKind) model.DeviceClass {
	switch kind {
	case model.KindTemperature:
		return model.DeviceCooling
	case model.KindHumidity, model.KindParticulate:
		return model.DeviceVentilation
	case model.KindCurrent, model.KindVibration:
		return model.DeviceBreaker
	}
	return model.DeviceNone
}
