package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"symbio/config"
	pkgconfig "symbio/pkg/config"
)

func TestOpenStoreSQLite(t *testing.T) {
	st, err := OpenStore(context.Background(), pkgconfig.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "s.db")}, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	svc := NewServices(st, config.Config{JWT: pkgconfig.JWTConfig{Secret: "s"}}, zap.NewNop())
	if svc.Gateway == nil || svc.Proposal == nil {
		t.Fatal("services not wired")
	}
	if _, err := svc.Account.Register(context.Background(), "a@example.com", "password1", "CLIENT"); err != nil {
		t.Errorf("Register: %v", err)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, err := OpenStore(context.Background(), pkgconfig.DBConfig{Driver: "mysql"}, zap.NewNop()); err == nil {
		t.Error("expected error")
	}
}
