package alerts

import (
	"sync"
	"time"

	"siteguard/internal/model"
)

// Store keeps the most recent incidents in memory for the API and the
// initial dashboard payload. The persistent record lives in storage.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Incident
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(inc model.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, inc)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = inc
}

func (s *Store) List(limit int) []model.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Incident, 0, limit)
	start := len(s.buf) - limit
	if start < 0 {
		start = 0
	}
	for i := start; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Incident, 0)
	for _, inc := range s.buf {
		if !inc.DetectedAt.Before(ts) {
			out = append(out, inc)
		}
	}
	return out
}

// Ack marks the buffered copy acknowledged so the API reflects the flag
// without a storage round trip.
func (s *Store) Ack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.buf {
		if s.buf[i].ID == id {
			s.buf[i].Acknowledged = true
		}
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
