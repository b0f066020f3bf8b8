package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadIntoMergesEnvironmentAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  driver: postgres
  host: localhost
  port: 5432
  password: ${DB_SECRET}
scoring:
  interval: 1h
`)
	writeFile(t, dir, "staging.yaml", `
db:
  host: db.staging
`)
	writeFile(t, dir, "secrets.env", `
# comment
DB_SECRET="s3cret"
`)

	var out struct {
		DB      DBConfig      `yaml:"db"`
		Scoring ScoringConfig `yaml:"scoring"`
	}
	if err := LoadInto("staging", dir, &out); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	if out.DB.Host != "db.staging" {
		t.Errorf("host = %q, want db.staging", out.DB.Host)
	}
	if out.DB.Port != 5432 {
		t.Errorf("port = %d, want 5432", out.DB.Port)
	}
	if out.DB.Password != "s3cret" {
		t.Errorf("password = %q, want s3cret", out.DB.Password)
	}
	if out.Scoring.Interval != time.Hour {
		t.Errorf("interval = %v, want 1h", out.Scoring.Interval)
	}
}

func TestLoadConfigMissingBase(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Fatal("expected error when base.yaml is missing")
	}
}

func TestSystemEnvPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: ${SYMBIO_TEST_JWT}\n")
	t.Setenv("SYMBIO_TEST_JWT", "from-env")

	var out struct {
		JWT JWTConfig `yaml:"jwt"`
	}
	if err := LoadInto("", dir, &out); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if out.JWT.Secret != "from-env" {
		t.Fatalf("secret = %q, want from-env", out.JWT.Secret)
	}
}

func TestMergeMapsNested(t *testing.T) {
	dst := map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": "keep",
	}
	src := map[string]interface{}{
		"a": map[string]interface{}{"y": 3},
	}
	got := mergeMaps(dst, src)
	a := got["a"].(map[string]interface{})
	if a["x"] != 1 || a["y"] != 3 {
		t.Fatalf("merged a = %v", a)
	}
	if got["b"] != "keep" {
		t.Fatalf("b = %v", got["b"])
	}
}
