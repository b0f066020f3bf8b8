package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_DRIVER", "DB_PATH", "DB_PASSWORD", "JWT_SECRET", "ADMIN_TOKEN", "SERVER_PORT", "OTEL_ENDPOINT"} {
		t.Setenv(k, "")
	}
}

func TestLoadLocalConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom("local", ".")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "symbio.db" {
		t.Errorf("db = %+v", cfg.DB)
	}
	if cfg.JWT.Secret != "local-dev-secret" || cfg.JWT.TTL != 24*time.Hour {
		t.Errorf("jwt = %+v", cfg.JWT)
	}
	if cfg.Scoring.Interval != time.Hour || cfg.Outbox.BatchSize != 100 {
		t.Errorf("scoring = %+v, outbox = %+v", cfg.Scoring, cfg.Outbox)
	}
	if cfg.DB.Password != "" {
		t.Errorf("unresolved placeholder kept: %q", cfg.DB.Password)
	}
	if b := cfg.Payment.Breaker(); b.FailureThreshold != 5 || b.Timeout != 30*time.Second {
		t.Errorf("breaker = %+v", b)
	}
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("base.yaml", "db:\n  driver: mysql\njwt:\n  secret: s\n")
	if _, err := LoadFrom("test", dir); err == nil {
		t.Error("expected error for unknown driver")
	}

	write("base.yaml", "db:\n  driver: postgres\njwt:\n  secret: ${JWT_SECRET}\n")
	if _, err := LoadFrom("test", dir); err == nil {
		t.Error("expected error for missing jwt secret")
	}

	t.Setenv("JWT_SECRET", "from-env")
	cfg, err := LoadFrom("test", dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.JWT.Secret != "from-env" || cfg.Delivery.Queue != "notification.created.q" {
		t.Errorf("cfg = %+v", cfg)
	}
}
