package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"siteguard/internal/alerts"
	"siteguard/internal/heatmap"
	"siteguard/internal/model"
	"siteguard/internal/notify"
	"siteguard/internal/riskstate"
	"siteguard/internal/storage"
)

type captureStrategy struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (c *captureStrategy) Name() string                   { return "capture" }
func (c *captureStrategy) MinimumLevel() model.RiskLevel  { return model.LevelNormal }
func (c *captureStrategy) Send(ctx context.Context, a model.Alert) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return "capture", nil
}

func (c *captureStrategy) sent() []model.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

type staticResolver map[string]string

func (r staticResolver) ZoneFor(workerID string) (string, bool) {
	z, ok := r[workerID]
	return z, ok
}

func newTestProcessor(resolver AssignmentResolver) (*Processor, *storage.MemoryStore, *captureStrategy, *heatmap.Store) {
	store := storage.NewMemory()
	strategy := &captureStrategy{}
	heat := heatmap.NewStore(100)
	p := New(Deps{
		Aggregator: riskstate.New(),
		Store:      store,
		Incidents:  alerts.NewStore(100),
		Heatmap:    heat,
		Dispatcher: notify.NewDispatcher(notify.NewRegistry(strategy), store, nil),
		Resolver:   resolver,
	})
	return p, store, strategy, heat
}

func TestReadingTransitionCreatesIncident(t *testing.T) {
	p, store, strategy, _ := newTestProcessor(nil)

	p.ProcessReading(context.Background(), model.Reading{
		ZoneID: "z1", SensorID: "s1", SensorKind: model.KindTemperature, Value: 42,
	})

	incs := store.Incidents()
	if len(incs) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(incs))
	}
	inc := incs[0]
	if inc.DangerLevel != model.LevelSevere {
		t.Fatalf("expected severe incident, got %s", inc.DangerLevel)
	}
	if inc.TargetKind != model.TargetSensor || inc.TargetID != "s1" || inc.ZoneID != "z1" {
		t.Fatalf("unexpected incident target: %+v", inc)
	}
	if inc.ID == "" {
		t.Fatal("incident id not assigned")
	}
	if len(strategy.sent()) != 1 {
		t.Fatalf("expected 1 dispatched alert, got %d", len(strategy.sent()))
	}
	if strategy.sent()[0].Trigger != model.TriggerAutomatic {
		t.Fatalf("expected automatic trigger, got %s", strategy.sent()[0].Trigger)
	}
}

func TestRepeatedLevelDoesNotDuplicate(t *testing.T) {
	p, store, strategy, heat := newTestProcessor(nil)

	r := model.Reading{ZoneID: "z1", SensorID: "s1", SensorKind: model.KindTemperature, Value: 42}
	p.ProcessReading(context.Background(), r)
	r.Value = 43
	p.ProcessReading(context.Background(), r)

	if got := len(store.Incidents()); got != 1 {
		t.Fatalf("expected 1 incident after repeated severe readings, got %d", got)
	}
	if got := len(strategy.sent()); got != 1 {
		t.Fatalf("expected 1 alert after repeated severe readings, got %d", got)
	}
	points, _, ok := heat.Get("z1")
	if !ok || len(points) != 1 {
		t.Fatalf("expected heat point for z1, got %v", points)
	}
	if points[0].Value != 43 {
		t.Fatalf("heat point should carry the latest value, got %.1f", points[0].Value)
	}
}

func TestFirstNormalReadingRegistersSilently(t *testing.T) {
	p, store, strategy, _ := newTestProcessor(nil)

	p.ProcessReading(context.Background(), model.Reading{
		ZoneID: "z1", SensorID: "s1", SensorKind: model.KindTemperature, Value: 27,
	})

	if got := len(store.Incidents()); got != 0 {
		t.Fatalf("normal baseline reading must not create incidents, got %d", got)
	}
	if got := len(strategy.sent()); got != 0 {
		t.Fatalf("normal baseline reading must not dispatch, got %d", got)
	}
	if members := p.deps.Aggregator.Members("z1"); len(members) != 1 {
		t.Fatalf("expected sensor registered in zone, got %v", members)
	}
}

func TestRecoveryToNormalCreatesIncident(t *testing.T) {
	p, store, _, _ := newTestProcessor(nil)

	r := model.Reading{ZoneID: "z1", SensorID: "s1", SensorKind: model.KindTemperature, Value: 42}
	p.ProcessReading(context.Background(), r)
	r.Value = 27
	p.ProcessReading(context.Background(), r)

	incs := store.Incidents()
	if len(incs) != 2 {
		t.Fatalf("expected incident for the all-clear transition, got %d", len(incs))
	}
	if incs[1].DangerLevel != model.LevelNormal {
		t.Fatalf("expected normal level on recovery incident, got %s", incs[1].DangerLevel)
	}
	if got := p.deps.Aggregator.GroupLevel("z1"); got != model.LevelNormal {
		t.Fatalf("zone should be back to normal, got %s", got)
	}
}

func TestReadingMissingIdentifiersDropped(t *testing.T) {
	p, store, _, heat := newTestProcessor(nil)

	p.ProcessReading(context.Background(), model.Reading{SensorID: "s1", SensorKind: model.KindTemperature, Value: 42})
	p.ProcessReading(context.Background(), model.Reading{ZoneID: "z1", SensorKind: model.KindTemperature, Value: 42})

	if got := len(store.Incidents()); got != 0 {
		t.Fatalf("invalid readings must be dropped, got %d incidents", got)
	}
	if got := len(heat.GetAll()); got != 0 {
		t.Fatalf("invalid readings must not reach the heat map, got %d zones", got)
	}
}

func TestWearableFallsBackToHoldingZone(t *testing.T) {
	p, store, _, _ := newTestProcessor(nil)

	p.ProcessWearable(context.Background(), model.WearableReading{
		WorkerID: "w1", MetricKind: "heart_rate", Value: 170, DangerLevel: model.LevelSevere,
	})

	incs := store.Incidents()
	if len(incs) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(incs))
	}
	if incs[0].ZoneID != "holding-area" {
		t.Fatalf("unassigned worker should land in the holding zone, got %q", incs[0].ZoneID)
	}
	if incs[0].TargetKind != model.TargetWorker || incs[0].TargetID != "w1" {
		t.Fatalf("unexpected incident target: %+v", incs[0])
	}
}

func TestWearableUsesAssignedZone(t *testing.T) {
	p, store, _, _ := newTestProcessor(staticResolver{"w1": "z7"})

	p.ProcessWearable(context.Background(), model.WearableReading{
		WorkerID: "w1", MetricKind: "heart_rate", Value: 170, DangerLevel: model.LevelElevated,
	})

	incs := store.Incidents()
	if len(incs) != 1 || incs[0].ZoneID != "z7" {
		t.Fatalf("expected incident in assigned zone z7, got %+v", incs)
	}
	if got := p.deps.Aggregator.GroupLevel("z7"); got != model.LevelElevated {
		t.Fatalf("expected elevated zone level, got %s", got)
	}
}

func TestWearableTrustsStreamLevel(t *testing.T) {
	p, store, _, _ := newTestProcessor(nil)

	// Value alone would not classify, the gateway's level decides.
	p.ProcessWearable(context.Background(), model.WearableReading{
		WorkerID: "w1", MetricKind: "body_temp", Value: 1, DangerLevel: model.LevelSevere,
	})

	incs := store.Incidents()
	if len(incs) != 1 || incs[0].DangerLevel != model.LevelSevere {
		t.Fatalf("expected severe incident from stream level, got %+v", incs)
	}
}

func TestPooledAlarmCompletes(t *testing.T) {
	p, store, strategy, _ := newTestProcessor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx, 2, 8)

	p.ProcessWearable(ctx, model.WearableReading{
		WorkerID: "w1", MetricKind: "heart_rate", Value: 170, DangerLevel: model.LevelSevere,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.Incidents()) == 1 && len(strategy.sent()) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pooled alarm did not complete: %d incidents, %d alerts",
		len(store.Incidents()), len(strategy.sent()))
}
