package postgres

import (
	"context"
	"errors"
	"time"

	"survey-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RecordStore keeps last completion times in the user_records table.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) Get(ctx context.Context, nickname string) (time.Time, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_completed_at FROM user_records WHERE nickname=$1`, nickname).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &domain.StoreError{Op: "get", Err: err}
	}
	return at, true, nil
}

func (s *RecordStore) Put(ctx context.Context, nickname string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_records (nickname, last_completed_at) VALUES ($1, $2)
		ON CONFLICT (nickname) DO UPDATE SET last_completed_at=EXCLUDED.last_completed_at`, nickname, at.UTC())
	if err != nil {
		return &domain.StoreError{Op: "put", Err: err}
	}
	return nil
}
