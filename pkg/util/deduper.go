package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDeduper creates a deduper; logger may be nil.
func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the key guarding one (handler, id) pair.
func DedupKey(handler string, id int64) string {
	return fmt.Sprintf("dedup:%s:%d", handler, id)
}

// AcquireOnce tries to acquire a dedup lock for a given handler + id
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, id int64) bool {
	key := DedupKey(handler, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("handler", handler),
				zap.Int64("id", id),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release drops the dedup key so a failed message can be processed again.
func (d *Deduper) Release(ctx context.Context, handler string, id int64) {
	if err := d.rdb.Del(ctx, DedupKey(handler, id)).Err(); err != nil && d.logger != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.Error(err),
		)
	}
}
