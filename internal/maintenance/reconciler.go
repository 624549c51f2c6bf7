package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"siteguard/internal/alerts"
	"siteguard/internal/broadcast"
	"siteguard/internal/config"
	"siteguard/internal/model"
	"siteguard/internal/notify"
	"siteguard/internal/storage"
)

// Reconciler folds new remaining-life estimates into the equipment
// maintenance history and raises countdown alerts. Merge conflicts with
// the stored prediction are resolved deterministically: near-deadline
// estimates are ignored and a stored date is never pushed later.
type Reconciler struct {
	cfg         config.MaintenanceConfig
	predictor   Predictor
	store       storage.Store
	incidents   *alerts.Store
	dispatcher  *notify.Dispatcher
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

func NewReconciler(cfg config.MaintenanceConfig, predictor Predictor, store storage.Store,
	incidents *alerts.Store, dispatcher *notify.Dispatcher, broadcaster *broadcast.Broadcaster,
	logger *slog.Logger) *Reconciler {
	if cfg.FloorDays <= 0 {
		cfg.FloorDays = 5
	}
	if cfg.SevereDays <= 0 {
		cfg.SevereDays = 3
	}
	if len(cfg.AlertDays) == 0 {
		cfg.AlertDays = []int{5, 3}
	}
	return &Reconciler{
		cfg:         cfg,
		predictor:   predictor,
		store:       store,
		incidents:   incidents,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// Reconcile handles one artifact-store trigger for an (equipment, zone)
// pair: fetch the estimate, merge it into the open history record, then
// alert on the effective countdown.
func (r *Reconciler) Reconcile(ctx context.Context, ref model.ArtifactRef) error {
	days, err := r.predictor.RemainingLife(ctx, ref.EquipmentID, ref.ZoneID)
	if err != nil {
		return fmt.Errorf("prediction fetch for %s: %w", ref.EquipmentID, err)
	}

	today := dateOf(r.now().UTC())
	newDate := today.AddDate(0, 0, days)

	open, exists, err := r.store.OpenMaintenance(ctx, ref.EquipmentID)
	if err != nil {
		return fmt.Errorf("open maintenance lookup for %s: %w", ref.EquipmentID, err)
	}

	effective := newDate
	firstNotice := false
	switch {
	case !exists:
		rec := model.MaintenanceRecord{
			EquipmentID:   ref.EquipmentID,
			ZoneID:        ref.ZoneID,
			PredictedDate: newDate,
		}
		if _, err := r.store.InsertMaintenance(ctx, rec); err != nil {
			return fmt.Errorf("insert maintenance for %s: %w", ref.EquipmentID, err)
		}
		firstNotice = true
		r.info("maintenance prediction opened", "equipment_id", ref.EquipmentID, "predicted", newDate, "days", days)

	case days < r.cfg.FloorDays:
		// Near-deadline estimates thrash; the stored prediction wins.
		effective = open.PredictedDate
		r.info("maintenance prediction ignored inside floor", "equipment_id", ref.EquipmentID,
			"days", days, "floor_days", r.cfg.FloorDays)

	case newDate.Before(dateOf(open.PredictedDate)):
		if err := r.store.UpdatePredictedDate(ctx, open.ID, newDate); err != nil {
			return fmt.Errorf("update maintenance for %s: %w", ref.EquipmentID, err)
		}
		r.info("maintenance prediction moved earlier", "equipment_id", ref.EquipmentID,
			"previous", open.PredictedDate, "predicted", newDate)

	default:
		// A stored date is never pushed later.
		effective = open.PredictedDate
	}

	remaining := daysBetween(today, dateOf(effective))
	level := r.levelFor(remaining)

	var incidentID string
	if level > model.LevelNormal {
		inc := model.Incident{
			ID:            uuid.NewString(),
			TargetKind:    model.TargetEquipment,
			TargetID:      ref.EquipmentID,
			ZoneID:        ref.ZoneID,
			DangerLevel:   level,
			MeasuredValue: float64(remaining),
			Description:   fmt.Sprintf("equipment %s predicted to need service in %d days", ref.EquipmentID, remaining),
			DetectedAt:    r.now().UTC(),
		}
		if err := r.store.SaveIncident(ctx, inc); err != nil {
			r.warn("maintenance incident persist failed", "equipment_id", ref.EquipmentID, "err", err)
		} else {
			incidentID = inc.ID
			if r.incidents != nil {
				r.incidents.Add(inc)
			}
			r.publishUnread(ctx)
		}
	}

	if firstNotice || r.alertDay(remaining) || incidentID != "" {
		r.dispatch(ctx, ref, level, remaining, incidentID)
	}
	return nil
}

// Complete closes the open record once the service was actually performed.
func (r *Reconciler) Complete(ctx context.Context, equipmentID string, actual time.Time) error {
	return r.store.CloseMaintenance(ctx, equipmentID, actual)
}

func (r *Reconciler) dispatch(ctx context.Context, ref model.ArtifactRef, level model.RiskLevel, remaining int, incidentID string) {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Dispatch(ctx, model.Alert{
		IncidentID:    incidentID,
		TargetKind:    model.TargetEquipment,
		TargetID:      ref.EquipmentID,
		ZoneID:        ref.ZoneID,
		Level:         level,
		MeasuredValue: float64(remaining),
		Message:       fmt.Sprintf("equipment %s service due in %d days", ref.EquipmentID, remaining),
		Trigger:       model.TriggerAutomatic,
		Timestamp:     r.now().UTC(),
	})
}

func (r *Reconciler) levelFor(remaining int) model.RiskLevel {
	switch {
	case remaining <= r.cfg.SevereDays:
		return model.LevelSevere
	case remaining < r.cfg.FloorDays:
		return model.LevelElevated
	default:
		return model.LevelNormal
	}
}

func (r *Reconciler) alertDay(remaining int) bool {
	for _, d := range r.cfg.AlertDays {
		if remaining == d {
			return true
		}
	}
	return false
}

func (r *Reconciler) publishUnread(ctx context.Context) {
	if r.broadcaster == nil {
		return
	}
	count, err := r.store.UnreadIncidents(ctx)
	if err != nil {
		r.warn("unread count query failed", "err", err)
		return
	}
	r.broadcaster.UnreadCount(ctx, count)
}

func (r *Reconciler) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Reconciler) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
