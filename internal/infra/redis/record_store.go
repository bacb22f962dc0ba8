package redis

import (
	"context"
	"errors"
	"time"

	"survey-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RecordStore keeps last completion times in one hash:
// HSET survey:records {nickname} {RFC3339 timestamp}
type RecordStore struct {
	client *redis.Client
	key    string
}

func NewRecordStore(client *redis.Client) *RecordStore {
	return &RecordStore{client: client, key: "survey:records"}
}

func (s *RecordStore) Get(ctx context.Context, nickname string) (time.Time, bool, error) {
	raw, err := s.client.HGet(ctx, s.key, nickname).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &domain.StoreError{Op: "get", Err: err}
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, &domain.StoreError{Op: "get", Err: err}
	}
	return at, true, nil
}

func (s *RecordStore) Put(ctx context.Context, nickname string, at time.Time) error {
	if err := s.client.HSet(ctx, s.key, nickname, at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return &domain.StoreError{Op: "put", Err: err}
	}
	return nil
}
