package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"symbio/internal/store"
	"symbio/internal/store/postgres"
	"symbio/internal/store/storetest"
)

// 需要一个可随意清空的数据库：SYMBIO_TEST_POSTGRES_DSN=postgres://...
func newStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("SYMBIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SYMBIO_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	s := postgres.New(pool, zap.NewNop())
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		TRUNCATE users, profiles, projects, proposals, team_members, milestones,
		         reviews, notifications, outbox_events RESTART IDENTITY CASCADE
	`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newStore)
}
