package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/model"
	"siteguard/internal/storage"
)

type fakeStrategy struct {
	name  string
	min   model.RiskLevel
	fail  bool
	calls int
}

func (f *fakeStrategy) Name() string                 { return f.name }
func (f *fakeStrategy) MinimumLevel() model.RiskLevel { return f.min }

func (f *fakeStrategy) Send(ctx context.Context, alert model.Alert) (string, error) {
	f.calls++
	if f.fail {
		return "target:" + f.name, errors.New("delivery refused")
	}
	return "target:" + f.name, nil
}

func threeTiers() (*fakeStrategy, *fakeStrategy, *fakeStrategy, *Registry) {
	normal := &fakeStrategy{name: "live-feed", min: model.LevelNormal}
	elevated := &fakeStrategy{name: "mobile-push", min: model.LevelElevated}
	severe := &fakeStrategy{name: "chat-webhook", min: model.LevelSevere}
	return normal, elevated, severe, NewRegistry(normal, elevated, severe)
}

func TestSevereAlertFiresAllTiers(t *testing.T) {
	normal, elevated, severe, reg := threeTiers()
	store := storage.NewMemory()
	d := NewDispatcher(reg, store, nil)

	d.Dispatch(context.Background(), model.Alert{
		IncidentID: "inc-1",
		ZoneID:     "z1",
		Level:      model.LevelSevere,
	})

	assert.Equal(t, 1, normal.calls)
	assert.Equal(t, 1, elevated.calls)
	assert.Equal(t, 1, severe.calls)
	require.Len(t, store.Notifications(), 3)
}

func TestElevatedAlertSkipsSevereTier(t *testing.T) {
	normal, elevated, severe, reg := threeTiers()
	d := NewDispatcher(reg, storage.NewMemory(), nil)

	d.Dispatch(context.Background(), model.Alert{ZoneID: "z1", Level: model.LevelElevated})

	assert.Equal(t, 1, normal.calls)
	assert.Equal(t, 1, elevated.calls)
	assert.Equal(t, 0, severe.calls)
}

func TestNormalAlertFiresOnlyLiveTier(t *testing.T) {
	normal, elevated, severe, reg := threeTiers()
	d := NewDispatcher(reg, storage.NewMemory(), nil)

	d.Dispatch(context.Background(), model.Alert{ZoneID: "z1", Level: model.LevelNormal})

	assert.Equal(t, 1, normal.calls)
	assert.Equal(t, 0, elevated.calls)
	assert.Equal(t, 0, severe.calls)
}

func TestChannelFailureIsIsolated(t *testing.T) {
	normal, elevated, severe, reg := threeTiers()
	elevated.fail = true
	store := storage.NewMemory()
	d := NewDispatcher(reg, store, nil)

	d.Dispatch(context.Background(), model.Alert{
		IncidentID: "inc-2",
		ZoneID:     "z1",
		Level:      model.LevelSevere,
	})

	assert.Equal(t, 1, normal.calls)
	assert.Equal(t, 1, severe.calls, "failure in one channel must not stop the others")

	recs := store.Notifications()
	require.Len(t, recs, 3)
	byChannel := map[string]model.NotificationRecord{}
	for _, rec := range recs {
		byChannel[rec.Channel] = rec
	}
	assert.True(t, byChannel["live-feed"].Success)
	assert.False(t, byChannel["mobile-push"].Success)
	assert.True(t, byChannel["chat-webhook"].Success)
	for _, rec := range recs {
		assert.Equal(t, "inc-2", rec.IncidentID)
		assert.Equal(t, model.TriggerAutomatic, rec.Trigger)
		assert.NotEmpty(t, rec.Target)
	}
}

func TestManualTriggerRecorded(t *testing.T) {
	_, _, _, reg := threeTiers()
	store := storage.NewMemory()
	d := NewDispatcher(reg, store, nil)

	d.Dispatch(context.Background(), model.Alert{
		ZoneID:  "z1",
		Level:   model.LevelNormal,
		Trigger: model.TriggerManual,
	})

	recs := store.Notifications()
	require.Len(t, recs, 1)
	assert.Equal(t, model.TriggerManual, recs[0].Trigger)
}

func TestRegistryOrderIsStable(t *testing.T) {
	normal, elevated, _, reg := threeTiers()
	got := reg.Applicable(model.LevelElevated)
	require.Len(t, got, 2)
	assert.Equal(t, normal.Name(), got[0].Name())
	assert.Equal(t, elevated.Name(), got[1].Name())
}
