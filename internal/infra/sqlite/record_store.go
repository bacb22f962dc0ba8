package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"survey-quiz-service/internal/domain"
	_ "modernc.org/sqlite" // driver: sqlite
)

const schema = `
CREATE TABLE IF NOT EXISTS user_records (
  nickname TEXT PRIMARY KEY,
  last_completed_at TEXT NOT NULL
);
`

// RecordStore keeps last completion times in a local SQLite file.
type RecordStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*RecordStore, error) {
	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Get(ctx context.Context, nickname string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT last_completed_at FROM user_records WHERE nickname=?`, nickname).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_records (nickname, last_completed_at) VALUES (?, ?)
		ON CONFLICT(nickname) DO UPDATE SET last_completed_at=excluded.last_completed_at`,
		nickname, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &domain.StoreError{Op: "put", Err: err}
	}
	return nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}
