package heatmap

import (
	"sync"
	"time"

	"siteguard/internal/model"
)

// Store tracks the latest heat-map point per (zone, kind) for the
// dashboard API. Every reading updates it, transitions or not.
type Store struct {
	mu        sync.RWMutex
	byZone    map[string]map[string]model.HeatPoint
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byZone:    make(map[string]map[string]model.HeatPoint),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(point model.HeatPoint) {
	if point.ZoneID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	zone, ok := s.byZone[point.ZoneID]
	if !ok {
		zone = make(map[string]model.HeatPoint)
		s.byZone[point.ZoneID] = zone
	}
	zone[point.Kind] = point
	s.updatedAt[point.ZoneID] = time.Now().UTC()
	if len(s.byZone) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(zoneID string) ([]model.HeatPoint, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zone, ok := s.byZone[zoneID]
	if !ok {
		return nil, time.Time{}, false
	}
	out := make([]model.HeatPoint, 0, len(zone))
	for _, p := range zone {
		out = append(out, p)
	}
	return out, s.updatedAt[zoneID], true
}

func (s *Store) GetAll() map[string][]model.HeatPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.HeatPoint, len(s.byZone))
	for zoneID, zone := range s.byZone {
		list := make([]model.HeatPoint, 0, len(zone))
		for _, p := range zone {
			list = append(list, p)
		}
		out[zoneID] = list
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestZone string
	var oldest time.Time
	for zone, ts := range s.updatedAt {
		if oldestZone == "" || ts.Before(oldest) {
			oldestZone = zone
			oldest = ts
		}
	}
	if oldestZone != "" {
		delete(s.byZone, oldestZone)
		delete(s.updatedAt, oldestZone)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byZone = make(map[string]map[string]model.HeatPoint)
	s.updatedAt = make(map[string]time.Time)
}
