package memory

import (
	"context"
	"sync"
	"time"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Entries expire ttl after their last write; a zero ttl keeps them forever.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]entry
}

type entry struct {
	session   *app.Session
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(ttl, time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic expiry.
func NewSessionStoreWithClock(ttl time.Duration, clock func() time.Time) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]entry),
	}
}

func (s *SessionStore) Get(_ context.Context, key string) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

func (s *SessionStore) Put(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(session)
	return nil
}

func (s *SessionStore) Update(_ context.Context, key string, fn func(*app.Session) error) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	working := e.session.Clone()
	if err := fn(working); err != nil {
		return e.session.Clone(), err
	}
	s.putLocked(working)
	return working.Clone(), nil
}

func (s *SessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Sweep drops expired sessions. The server calls it periodically.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	removed := 0
	for key, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) liveLocked(key string) (entry, bool) {
	e, ok := s.sessions[key]
	if !ok {
		return entry{}, false
	}
	if s.expired(e, s.clock()) {
		delete(s.sessions, key)
		return entry{}, false
	}
	return e, true
}

func (s *SessionStore) putLocked(session *app.Session) {
	e := entry{session: session.Clone()}
	if s.ttl > 0 {
		e.expiresAt = s.clock().Add(s.ttl)
	}
	s.sessions[session.ID] = e
}

func (s *SessionStore) expired(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
