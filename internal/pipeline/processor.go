package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"siteguard/internal/alerts"
	"siteguard/internal/autocontrol"
	"siteguard/internal/broadcast"
	"siteguard/internal/classify"
	"siteguard/internal/heatmap"
	"siteguard/internal/model"
	"siteguard/internal/notify"
	"siteguard/internal/riskstate"
	"siteguard/internal/storage"
)

// AssignmentResolver reports the zone a worker is currently assigned to.
type AssignmentResolver interface {
	ZoneFor(workerID string) (string, bool)
}

type Deps struct {
	Aggregator  *riskstate.Aggregator
	Store       storage.Store
	Incidents   *alerts.Store
	Heatmap     *heatmap.Store
	Dispatcher  *notify.Dispatcher
	Control     *autocontrol.Evaluator
	Broadcaster *broadcast.Broadcaster
	Resolver    AssignmentResolver
	HoldingZone string
	Logger      *slog.Logger
}

// Processor runs the per-reading state machine: validate, classify, always
// publish the heat-map point, then persist/alarm/control only when the
// member's risk level actually changed.
//
// Precondition: the upstream stream partitions by member id (sensor or
// worker), so readings for one member arrive in order. The processor does
// not re-derive ordering; concurrent readings for different members are
// fine.
//
// Every entry point consumes its message unconditionally: failures inside
// the steps are logged and the reading's remaining side effects dropped
// (at-most-once).
type Processor struct {
	deps  Deps
	tasks chan func()
}

func New(deps Deps) *Processor {
	if deps.HoldingZone == "" {
		deps.HoldingZone = "holding-area"
	}
	return &Processor{deps: deps}
}

// Start launches the bounded pool that composes wearable alarms off the
// consumer goroutine. Without Start all work runs inline.
func (p *Processor) Start(ctx context.Context, workers, queue int) {
	if workers <= 0 {
		workers = 10
	}
	if queue <= 0 {
		queue = 200
	}
	p.tasks = make(chan func(), queue)
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case task := <-p.tasks:
					task()
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// ProcessReading handles one equipment/environment reading. The danger
// level is derived locally; a pre-classified value on the message is
// recomputed because the derived path is authoritative for aggregation.
func (p *Processor) ProcessReading(ctx context.Context, r model.Reading) {
	defer p.recoverTo("reading")

	zone := strings.TrimSpace(r.ZoneID)
	sensor := strings.TrimSpace(r.SensorID)
	if zone == "" || sensor == "" {
		p.warn("reading dropped, missing identifiers", "zone_id", r.ZoneID, "sensor_id", r.SensorID)
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	level := classify.Classify(r.SensorKind, r.Value)

	p.publishHeat(ctx, model.HeatPoint{
		ZoneID:    zone,
		Kind:      string(r.SensorKind),
		Level:     level,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	})

	if prev, _ := p.deps.Aggregator.SetMemberLevel(zone, sensor, level); prev == level {
		return
	}

	inc := model.Incident{
		ID:            uuid.NewString(),
		TargetKind:    model.TargetSensor,
		TargetID:      sensor,
		ZoneID:        zone,
		DangerLevel:   level,
		MeasuredValue: r.Value,
		Description:   fmt.Sprintf("%s risk %s: measured %.2f", r.SensorKind, level, r.Value),
		DetectedAt:    r.Timestamp,
	}
	reading := r
	p.completeTransition(ctx, inc, &reading)
}

// ProcessWearable handles one wearable reading. The stream's danger level
// is trusted (wearable gateways pre-classify); the worker's zone comes
// from the current assignment, falling back to the holding zone.
func (p *Processor) ProcessWearable(ctx context.Context, w model.WearableReading) {
	defer p.recoverTo("wearable")

	worker := strings.TrimSpace(w.WorkerID)
	if worker == "" {
		p.warn("wearable reading dropped, missing worker id", "device_id", w.DeviceID)
		return
	}
	if w.Timestamp.IsZero() {
		w.Timestamp = time.Now().UTC()
	}
	zone := p.deps.HoldingZone
	if p.deps.Resolver != nil {
		if z, ok := p.deps.Resolver.ZoneFor(worker); ok && z != "" {
			zone = z
		}
	}
	level := w.DangerLevel

	p.publishHeat(ctx, model.HeatPoint{
		ZoneID:    zone,
		Kind:      w.MetricKind,
		Level:     level,
		Value:     w.Value,
		Timestamp: w.Timestamp,
	})

	if prev, _ := p.deps.Aggregator.SetMemberLevel(zone, worker, level); prev == level {
		return
	}

	inc := model.Incident{
		ID:            uuid.NewString(),
		TargetKind:    model.TargetWorker,
		TargetID:      worker,
		ZoneID:        zone,
		DangerLevel:   level,
		MeasuredValue: w.Value,
		Description:   fmt.Sprintf("worker %s %s risk %s: measured %.2f", worker, w.MetricKind, level, w.Value),
		DetectedAt:    w.Timestamp,
	}
	p.submit(func() {
		defer p.recoverTo("wearable alarm")
		p.completeTransition(ctx, inc, nil)
	})
}

// completeTransition persists the incident first, then runs the
// best-effort side effects. A crash between the two can lose a
// notification but never the incident record.
func (p *Processor) completeTransition(ctx context.Context, inc model.Incident, reading *model.Reading) {
	if p.deps.Store != nil {
		if err := p.deps.Store.SaveIncident(ctx, inc); err != nil {
			p.warn("incident persist failed", "incident_id", inc.ID, "err", err)
		}
	}
	if p.deps.Incidents != nil {
		p.deps.Incidents.Add(inc)
	}
	if reading != nil && p.deps.Control != nil {
		p.deps.Control.Evaluate(ctx, *reading, inc.DangerLevel)
	}
	if p.deps.Dispatcher != nil {
		p.deps.Dispatcher.Dispatch(ctx, model.Alert{
			IncidentID:    inc.ID,
			TargetKind:    inc.TargetKind,
			TargetID:      inc.TargetID,
			ZoneID:        inc.ZoneID,
			Level:         inc.DangerLevel,
			MeasuredValue: inc.MeasuredValue,
			Message:       inc.Description,
			Trigger:       model.TriggerAutomatic,
			Timestamp:     inc.DetectedAt,
		})
	}
	p.publishUnread(ctx)
}

func (p *Processor) publishHeat(ctx context.Context, point model.HeatPoint) {
	if p.deps.Heatmap != nil {
		p.deps.Heatmap.Update(point)
	}
	if p.deps.Broadcaster != nil {
		p.deps.Broadcaster.HeatPoint(ctx, point)
	}
}

func (p *Processor) publishUnread(ctx context.Context) {
	if p.deps.Store == nil || p.deps.Broadcaster == nil {
		return
	}
	count, err := p.deps.Store.UnreadIncidents(ctx)
	if err != nil {
		p.warn("unread count query failed", "err", err)
		return
	}
	p.deps.Broadcaster.UnreadCount(ctx, count)
}

// submit queues alarm composition on the pool; when the queue is full (or
// the pool was never started) the work runs inline so the alarm is never
// dropped.
func (p *Processor) submit(task func()) {
	if p.tasks == nil {
		task()
		return
	}
	select {
	case p.tasks <- task:
	default:
		task()
	}
}

func (p *Processor) recoverTo(stage string) {
	if r := recover(); r != nil && p.deps.Logger != nil {
		p.deps.Logger.Error("panic while processing, message consumed", "stage", stage, "panic", r)
	}
}

func (p *Processor) warn(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, args...)
	}
}
