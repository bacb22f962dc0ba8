package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		CookieSecure bool   `yaml:"cookie_secure"`
	} `yaml:"server"`
	Session struct {
		Backend string `yaml:"backend"` // memory | redis
		TTL     string `yaml:"ttl"`
	} `yaml:"session"`
	Records struct {
		Backend string `yaml:"backend"` // file | memory | redis | postgres | sqlite
		Path    string `yaml:"path"`
	} `yaml:"records"`
	Questions struct {
		Source string `yaml:"source"` // file | postgres
		Path   string `yaml:"path"`
	} `yaml:"questions"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Notifier struct {
		Transport     string  `yaml:"transport"` // log | telegram | ses
		MaxChunk      int     `yaml:"max_chunk"`
		Timeout       string  `yaml:"timeout"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RichText      *bool   `yaml:"rich_text"`
		Telegram      struct {
			Token  string `yaml:"token"`
			ChatID string `yaml:"chat_id"`
			APIURL string `yaml:"api_url"`
		} `yaml:"telegram"`
		SES struct {
			Region  string `yaml:"region"`
			From    string `yaml:"from"`
			To      string `yaml:"to"`
			Subject string `yaml:"subject"`
		} `yaml:"ses"`
	} `yaml:"notifier"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields defaults so the
// service can run from environment variables alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// applyEnv lets secrets and connection strings stay out of the YAML file.
func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.Notifier.Telegram.Token,
		"TELEGRAM_CHAT_ID":   &cfg.Notifier.Telegram.ChatID,
		"POSTGRES_URL":       &cfg.Postgres.URL,
		"REDIS_ADDR":         &cfg.Redis.Addr,
		"REDIS_PASSWORD":     &cfg.Redis.Password,
		"NOTIFIER_TRANSPORT": &cfg.Notifier.Transport,
		"QUESTIONS_PATH":     &cfg.Questions.Path,
		"LOG_LEVEL":          &cfg.Log.Level,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Records.Backend == "" {
		cfg.Records.Backend = "file"
	}
	if cfg.Records.Path == "" {
		cfg.Records.Path = "data/users.json"
	}
	if cfg.Questions.Source == "" {
		cfg.Questions.Source = "file"
	}
	if cfg.Questions.Path == "" {
		cfg.Questions.Path = "questions.json"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/records.db"
	}
	if cfg.Notifier.Transport == "" {
		cfg.Notifier.Transport = "log"
	}
	if cfg.Notifier.RichText == nil {
		rich := true
		cfg.Notifier.RichText = &rich
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
