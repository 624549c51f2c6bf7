package notify

import (
	"context"
	"log/slog"
	"time"

	"siteguard/internal/model"
	"siteguard/internal/storage"
)

// Dispatcher fans an alert out to every applicable channel. Channel
// failures are isolated: each failure is logged and recorded as a negative
// audit row, and never stops the remaining channels or reaches the caller.
// Exactly one NotificationRecord is written per channel per dispatch.
type Dispatcher struct {
	registry *Registry
	store    storage.Store
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, store storage.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, store: store, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, alert model.Alert) {
	if alert.Trigger == "" {
		alert.Trigger = model.TriggerAutomatic
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	for _, s := range d.registry.Applicable(alert.Level) {
		target, err := s.Send(ctx, alert)
		if err != nil && d.logger != nil {
			d.logger.Warn("notification channel failed",
				"channel", s.Name(),
				"incident_id", alert.IncidentID,
				"zone_id", alert.ZoneID,
				"err", err,
			)
		}
		d.audit(ctx, model.NotificationRecord{
			Channel:    s.Name(),
			Target:     target,
			Success:    err == nil,
			Trigger:    alert.Trigger,
			Timestamp:  time.Now().UTC(),
			IncidentID: alert.IncidentID,
		})
	}
}

func (d *Dispatcher) audit(ctx context.Context, rec model.NotificationRecord) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveNotification(ctx, rec); err != nil && d.logger != nil {
		d.logger.Error("notification audit write failed", "channel", rec.Channel, "err", err)
	}
}
