package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"survey-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads the bank from the questions table, ordered by position.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT text, meta FROM questions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			text string
			raw  []byte
		)
		if err := rows.Scan(&text, &raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q := domain.Question{Text: text}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &q.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal question meta: %w", err)
			}
			if len(q.Meta) == 0 {
				q.Meta = nil
			}
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

// SeedQuestions replaces the table content with questions in order.
func SeedQuestions(ctx context.Context, pool *pgxpool.Pool, questions []domain.Question) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
		return err
	}
	for i, q := range questions {
		meta := q.Meta
		if meta == nil {
			meta = map[string]string{}
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO questions (position, text, meta) VALUES ($1, $2, $3::jsonb)`, i+1, q.Text, string(raw)); err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}
	return tx.Commit(ctx)
}
