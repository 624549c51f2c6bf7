package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"siteguard/internal/model"
)

// MemoryStore is an in-memory Store used by tests and single-process
// deployments that opt out of persistence.
type MemoryStore struct {
	mu            sync.Mutex
	incidents     []model.Incident
	notifications []model.NotificationRecord
	actions       []model.ControlAction
	sensors       map[string]model.SensorInfo
	maintenance   []model.MaintenanceRecord
	nextID        int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{sensors: make(map[string]model.SensorInfo), nextID: 1}
}

func (s *MemoryStore) Init(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) SaveIncident(ctx context.Context, inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, inc)
	return nil
}

func (s *MemoryStore) AckIncident(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.incidents {
		if s.incidents[i].ID == id {
			s.incidents[i].Acknowledged = true
		}
	}
	return nil
}

func (s *MemoryStore) UnreadIncidents(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, inc := range s.incidents {
		if !inc.Acknowledged {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) RecentIncidents(ctx context.Context, limit int) ([]model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Incident, len(s.incidents))
	copy(out, s.incidents)
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveNotification(ctx context.Context, rec model.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, rec)
	return nil
}

func (s *MemoryStore) SaveControlAction(ctx context.Context, action model.ControlAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *MemoryStore) RegisterSensor(ctx context.Context, info model.SensorInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sensors[info.SensorID]; ok {
		return nil
	}
	s.sensors[info.SensorID] = info
	return nil
}

func (s *MemoryStore) ListSensors(ctx context.Context) ([]model.SensorInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SensorInfo, 0, len(s.sensors))
	for _, info := range s.sensors {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (s *MemoryStore) OpenMaintenance(ctx context.Context, equipmentID string) (model.MaintenanceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.maintenance) - 1; i >= 0; i-- {
		rec := s.maintenance[i]
		if rec.EquipmentID == equipmentID && rec.ActualDate == nil {
			return rec, true, nil
		}
	}
	return model.MaintenanceRecord{}, false, nil
}

func (s *MemoryStore) InsertMaintenance(ctx context.Context, rec model.MaintenanceRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	s.maintenance = append(s.maintenance, rec)
	return rec.ID, nil
}

func (s *MemoryStore) UpdatePredictedDate(ctx context.Context, id int64, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.maintenance {
		if s.maintenance[i].ID == id {
			s.maintenance[i].PredictedDate = date
		}
	}
	return nil
}

func (s *MemoryStore) CloseMaintenance(ctx context.Context, equipmentID string, actual time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.maintenance {
		if s.maintenance[i].EquipmentID == equipmentID && s.maintenance[i].ActualDate == nil {
			t := actual
			s.maintenance[i].ActualDate = &t
		}
	}
	return nil
}

// Notifications returns a copy of the audit trail. Test helper.
func (s *MemoryStore) Notifications() []model.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NotificationRecord, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Incidents returns a copy of the stored incidents. Test helper.
func (s *MemoryStore) Incidents() []model.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Incident, len(s.incidents))
	copy(out, s.incidents)
	return out
}

// ControlActions returns a copy of the stored control actions. Test helper.
func (s *MemoryStore) ControlActions() []model.ControlAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ControlAction, len(s.actions))
	copy(out, s.actions)
	return out
}

// OpenRecords returns the open maintenance records. Test helper.
func (s *MemoryStore) OpenRecords() []model.MaintenanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MaintenanceRecord
	for _, rec := range s.maintenance {
		if rec.ActualDate == nil {
			out = append(out, rec)
		}
	}
	return out
}
