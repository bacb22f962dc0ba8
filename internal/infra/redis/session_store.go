package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// SessionStore keeps attempts as JSON values with a sliding TTL so every
// instance behind a load balancer sees the same progress.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, key string) (*app.Session, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) Put(ctx context.Context, session *app.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.ID), raw, s.ttl).Err()
}

// Update runs fn inside WATCH/MULTI and retries when another writer won the race.
func (s *SessionStore) Update(ctx context.Context, key string, fn func(*app.Session) error) (*app.Session, error) {
	redisKey := s.key(key)
	var result *app.Session
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		session, err := decodeSession(raw)
		if err != nil {
			return err
		}
		result = session.Clone()
		if err := fn(session); err != nil {
			return err
		}
		encoded, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, encoded, s.ttl)
			return nil
		})
		if err == nil {
			result = session
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, err
			}
			return result, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("update session %s: too much contention", key)
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *SessionStore) key(id string) string {
	return "survey:session:" + id
}

func decodeSession(raw []byte) (*app.Session, error) {
	var session app.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
