package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"symbio/internal/store"
	"symbio/internal/store/sqlite"
	"symbio/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, storetest.NewSQLite)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbio.db")
	s, err := sqlite.Open(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate #%d: %v", i+1, err)
		}
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlite.Open("  ", zap.NewNop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

var _ store.Store = (*sqlite.Store)(nil)
