package memory

import (
	"context"
	"sync"
	"time"
)

// RecordStore keeps last completion times in process memory.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]time.Time
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]time.Time)}
}

func (s *RecordStore) Get(_ context.Context, nickname string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.records[nickname]
	return at, ok, nil
}

func (s *RecordStore) Put(_ context.Context, nickname string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[nickname] = at
	return nil
}
