package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"survey-quiz-service/internal/domain"
)

// record is the on-disk value per nickname.
type record struct {
	LastCompletedAt time.Time `json:"lastCompletedAt"`
}

// RecordStore keeps {"nickname": {"lastCompletedAt": "..."}} in a JSON file.
// A missing file reads as empty; every write replaces the file atomically.
type RecordStore struct {
	path string
	mu   sync.Mutex
}

func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

func (s *RecordStore) Get(_ context.Context, nickname string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readLocked()
	if err != nil {
		return time.Time{}, false, &domain.StoreError{Op: "get", Err: err}
	}
	rec, ok := records[nickname]
	return rec.LastCompletedAt, ok, nil
}

func (s *RecordStore) Put(_ context.Context, nickname string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readLocked()
	if err != nil {
		return &domain.StoreError{Op: "put", Err: err}
	}
	records[nickname] = record{LastCompletedAt: at.UTC()}
	if err := s.writeLocked(records); err != nil {
		return &domain.StoreError{Op: "put", Err: err}
	}
	return nil
}

func (s *RecordStore) readLocked() (map[string]record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]record), nil
	}
	if err != nil {
		return nil, err
	}
	records := make(map[string]record)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return records, nil
}

func (s *RecordStore) writeLocked(records map[string]record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
