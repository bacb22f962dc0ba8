package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/config"
	"survey-quiz-service/internal/infra/file"
	"survey-quiz-service/internal/infra/memory"
	"survey-quiz-service/internal/infra/postgres"
	redisstore "survey-quiz-service/internal/infra/redis"
	"survey-quiz-service/internal/infra/sqlite"
	"survey-quiz-service/internal/metrics"
	"survey-quiz-service/internal/notify"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultSessionTTL = 6 * time.Hour

// resources holds the shared connections opened for the configured backends.
type resources struct {
	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func() error
}

func openResources(ctx context.Context, cfg config.Config) (*resources, error) {
	res := &resources{}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		res.pool = pool
		res.closers = append(res.closers, func() error { pool.Close(); return nil })
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			res.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		res.redis = client
		res.closers = append(res.closers, client.Close)
	}
	return res, nil
}

// Close releases resources in reverse order of acquisition.
func (r *resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func questionLoader(cfg config.Config, res *resources) (app.QuestionLoader, error) {
	switch cfg.Questions.Source {
	case "file":
		return app.NewFileQuestionLoader(cfg.Questions.Path), nil
	case "postgres":
		if res.pool == nil {
			return nil, errors.New("questions.source=postgres requires postgres.url")
		}
		return postgres.NewQuestionLoader(res.pool), nil
	default:
		return nil, fmt.Errorf("unknown questions source %q", cfg.Questions.Source)
	}
}

// sessionRepository returns the memory store too when it is in use, so the
// caller can sweep expired attempts.
func sessionRepository(cfg config.Config, res *resources) (app.SessionRepository, *memory.SessionStore, error) {
	ttl := config.TTLDuration(cfg.Session.TTL, defaultSessionTTL)
	switch cfg.Session.Backend {
	case "memory":
		store := memory.NewSessionStore(ttl)
		return store, store, nil
	case "redis":
		if res.redis == nil {
			return nil, nil, errors.New("session.backend=redis requires redis.addr")
		}
		return redisstore.NewSessionStore(res.redis, ttl), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func recordStore(ctx context.Context, cfg config.Config, res *resources) (app.UserRecordStore, error) {
	switch cfg.Records.Backend {
	case "file":
		return file.NewRecordStore(cfg.Records.Path), nil
	case "memory":
		return memory.NewRecordStore(), nil
	case "redis":
		if res.redis == nil {
			return nil, errors.New("records.backend=redis requires redis.addr")
		}
		return redisstore.NewRecordStore(res.redis), nil
	case "postgres":
		if res.pool == nil {
			return nil, errors.New("records.backend=postgres requires postgres.url")
		}
		return postgres.NewRecordStore(res.pool), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, err
		}
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		res.closers = append(res.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown records backend %q", cfg.Records.Backend)
	}
}

func buildNotifier(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*notify.Dispatcher, error) {
	nc := cfg.Notifier
	rich := nc.RichText == nil || *nc.RichText

	var transport notify.Transport
	switch nc.Transport {
	case "log":
		transport = notify.NewLogTransport(log)
	case "telegram":
		if nc.Telegram.Token == "" || nc.Telegram.ChatID == "" {
			return nil, errors.New("telegram transport requires token and chat_id")
		}
		transport = notify.NewTelegramTransport(nil, nc.Telegram.APIURL, nc.Telegram.Token, nc.Telegram.ChatID, rich)
	case "ses":
		ses, err := notify.NewSESTransport(ctx, nc.SES.Region, nc.SES.From, nc.SES.To, nc.SES.Subject)
		if err != nil {
			return nil, fmt.Errorf("ses transport: %w", err)
		}
		transport = ses
	default:
		return nil, fmt.Errorf("unknown notifier transport %q", nc.Transport)
	}

	return notify.NewDispatcher(transport, notify.Options{
		MaxChunk:      nc.MaxChunk,
		RichText:      rich,
		Timeout:       config.TTLDuration(nc.Timeout, 10*time.Second),
		RatePerSecond: nc.RatePerSecond,
		Logger:        log.Named("notify"),
		Metrics:       m,
	}), nil
}
