package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
session:
  backend: redis
  ttl: 2h
redis:
  addr: localhost:6379
notifier:
  transport: telegram
  max_chunk: 3000
  rich_text: false
  telegram:
    token: from-file
    chat_id: "-100"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Session.Backend != "redis" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Notifier.Telegram.Token != "from-env" || cfg.Notifier.Telegram.ChatID != "-100" {
		t.Fatalf("expected env override, got %+v", cfg.Notifier.Telegram)
	}
	if *cfg.Notifier.RichText {
		t.Fatalf("expected rich_text false")
	}
	if cfg.Records.Backend != "file" || cfg.Questions.Path != "questions.json" {
		t.Fatalf("expected defaults, got %+v %+v", cfg.Records, cfg.Questions)
	}
	if TTLDuration(cfg.Session.TTL, time.Minute) != 2*time.Hour {
		t.Fatalf("unexpected ttl")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Backend != "memory" || cfg.Notifier.Transport != "log" || !*cfg.Notifier.RichText {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if TTLDuration("", time.Minute) != time.Minute {
		t.Fatalf("empty should fall back")
	}
	if TTLDuration("soon", time.Minute) != time.Minute {
		t.Fatalf("invalid should fall back")
	}
}
