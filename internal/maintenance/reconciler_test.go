package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/alerts"
	"siteguard/internal/config"
	"siteguard/internal/model"
	"siteguard/internal/notify"
	"siteguard/internal/storage"
)

type fixedPredictor struct {
	days int
	err  error
}

func (p fixedPredictor) RemainingLife(ctx context.Context, equipmentID, zoneID string) (int, error) {
	return p.days, p.err
}

type recordingStrategy struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (s *recordingStrategy) Name() string                  { return "recording" }
func (s *recordingStrategy) MinimumLevel() model.RiskLevel { return model.LevelNormal }
func (s *recordingStrategy) Send(ctx context.Context, a model.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return "recording", nil
}

func (s *recordingStrategy) sent() []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

var testNow = time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

func newTestReconciler(t *testing.T, days int) (*Reconciler, *storage.MemoryStore, *recordingStrategy) {
	t.Helper()
	store := storage.NewMemory()
	strategy := &recordingStrategy{}
	dispatcher := notify.NewDispatcher(notify.NewRegistry(strategy), store, nil)
	r := NewReconciler(config.MaintenanceConfig{
		FloorDays:  5,
		AlertDays:  []int{5, 3},
		SevereDays: 3,
	}, fixedPredictor{days: days}, store, alerts.NewStore(100), dispatcher, nil, nil)
	r.now = func() time.Time { return testNow }
	return r, store, strategy
}

func seedOpenRecord(t *testing.T, store *storage.MemoryStore, equipmentID string, daysOut int) {
	t.Helper()
	_, err := store.InsertMaintenance(context.Background(), model.MaintenanceRecord{
		EquipmentID:   equipmentID,
		ZoneID:        "z1",
		PredictedDate: dateOf(testNow).AddDate(0, 0, daysOut),
	})
	require.NoError(t, err)
}

func TestFirstPredictionOpensRecord(t *testing.T) {
	r, store, strategy := newTestReconciler(t, 10)

	err := r.Reconcile(context.Background(), model.ArtifactRef{EquipmentID: "mixer-4", ZoneID: "z1"})
	require.NoError(t, err)

	open, exists, err := store.OpenMaintenance(context.Background(), "mixer-4")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, dateOf(testNow).AddDate(0, 0, 10), open.PredictedDate)

	require.Len(t, strategy.sent(), 1, "first notice must always fire")
	assert.Equal(t, model.LevelNormal, strategy.sent()[0].Level)
	assert.Empty(t, store.Incidents(), "10 days out must not record an incident")
}

func TestFloorRuleIgnoresNearDeadlineEstimate(t *testing.T) {
	r, store, _ := newTestReconciler(t, 2)
	seedOpenRecord(t, store, "mixer-4", 4)

	require.NoError(t, r.Reconcile(context.Background(), model.ArtifactRef{EquipmentID: "mixer-4", ZoneID: "z1"}))

	open, exists, err := store.OpenMaintenance(context.Background(), "mixer-4")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, dateOf(testNow).AddDate(0, 0, 4), open.PredictedDate, "estimate inside the floor must not move the stored date")

	// The stored countdown still sits in the elevated window.
	require.Len(t, store.Incidents(), 1)
	assert.Equal(t, model.LevelElevated, store.Incidents()[0].DangerLevel)
	assert.Equal(t, model.TargetEquipment, store.Incidents()[0].TargetKind)
}

func TestSoonerPredictionReplacesStored(t *testing.T) {
	r, store, strategy := newTestReconciler(t, 7)
	seedOpenRecord(t, store, "mixer-4", 20)

	require.NoError(t, r.Reconcile(context.Background(), model.ArtifactRef{EquipmentID: "mixer-4", ZoneID: "z1"}))

	open, _, err := store.OpenMaintenance(context.Background(), "mixer-4")
	require.NoError(t, err)
	assert.Equal(t, dateOf(testNow).AddDate(0, 0, 7), open.PredictedDate)
	assert.Empty(t, store.Incidents())
	assert.Empty(t, strategy.sent(), "7 days out matches no alert day")
}

func TestLaterPredictionNeverReplacesStored(t *testing.T) {
	r, store, _ := newTestReconciler(t, 9)
	seedOpenRecord(t, store, "mixer-4", 6)

	require.NoError(t, r.Reconcile(context.Background(), model.ArtifactRef{EquipmentID: "mixer-4", ZoneID: "z1"}))

	open, _, err := store.OpenMaintenance(context.Background(), "mixer-4")
	require.NoError(t, err)
	assert.Equal(t, dateOf(testNow).AddDate(0, 0, 6), open.PredictedDate)
}

func TestExactDayAlertWithoutIncident(t *testing.T) {
	r, store, strategy := newTestReconciler(t, 10)
	seedOpenRecord(t, store, "mixer-4", 5)

	require.NoError(t, r.Reconcile(context.Background(), model.ArtifactRef{EquipmentID: "mixer-4", ZoneID: "z1"}))

	require.Len(t, strategy.sent(), 1, "day-5 countdown must alert")
	assert.Empty(t, store.Incidents(), "5 days out records no incident")
}

func TestSevereCountdownRecordsIncident(t *testing.T) {
	r, store, strategy := newTestReconciler(t, 30)
	seedOpenRecord(t, store, "mixer-4", 2)

	require.NoError(t, r.Reconcile(context.Background(), model.ArtifactRef{EquipmentID: "mixer-4", ZoneID: "z1"}))

	require.Len(t, store.Incidents(), 1)
	inc := store.Incidents()[0]
	assert.Equal(t, model.LevelSevere, inc.DangerLevel)
	assert.Equal(t, "mixer-4", inc.TargetID)
	require.Len(t, strategy.sent(), 1)
	assert.Equal(t, inc.ID, strategy.sent()[0].IncidentID)
}

func TestCompleteClosesOpenRecord(t *testing.T) {
	r, store, _ := newTestReconciler(t, 10)
	seedOpenRecord(t, store, "mixer-4", 6)

	require.NoError(t, r.Complete(context.Background(), "mixer-4", testNow))

	_, exists, err := store.OpenMaintenance(context.Background(), "mixer-4")
	require.NoError(t, err)
	assert.False(t, exists)
}
