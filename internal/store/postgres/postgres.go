// Package postgres implements store.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"symbio/internal/store"
	"symbio/pkg/otel"
	"symbio/pkg/outbox"
)

type Store struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		pool:   pool,
		outbox: outbox.NewRepository(pool),
		logger: logger,
	}
}

// InTx 使用 READ COMMITTED；并发控制依赖 LockProject 的行锁和状态 CAS
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return otel.TxSpan(ctx, "postgresql", func(ctx context.Context) error {
		pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("failed to begin tx: %w", err)
		}
		defer func() {
			// commit 之后 rollback 是 no-op
			_ = pgxTx.Rollback(ctx)
		}()

		if err := fn(&tx{tx: pgxTx, outbox: s.outbox}); err != nil {
			return err
		}
		if err := pgxTx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit tx: %w", err)
		}
		return nil
	})
}

func (s *Store) Outbox() outbox.Store {
	return s.outbox
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type tx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

var _ store.Tx = (*tx)(nil)

func (t *tx) InsertOutboxEvent(ctx context.Context, e *outbox.Event) error {
	return t.outbox.InsertEvent(ctx, t.tx, e)
}

// mapErr 把驱动错误翻译成 store 的哨兵错误
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// casResult CAS 更新没有命中任何行时返回 ErrStale
func casResult(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrStale
	}
	return nil
}
