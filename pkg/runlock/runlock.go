// Package runlock provides named exclusive locks for scheduled jobs.
//
// A lock is keyed by job name. Acquire never blocks: when another holder has
// the lock it returns ErrHeld and the caller skips its run. A lease expires
// after its ttl unless extended; KeepAlive extends it for as long as the run
// lasts and cancels the run's context if the lease is lost.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrHeld is returned when the named lock is held by another run.
	ErrHeld = errors.New("run lock held")
	// ErrLost is returned by Extend when the lease expired and the lock moved on.
	ErrLost = errors.New("run lock lost")
)

// Locker hands out named run locks.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Extend resets the lease ttl; ErrLost when the lock is no longer ours.
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// KeepAlive extends lease every ttl/3 until stop is called. The returned
// context is cancelled with cause ErrLost (or the extend error) as soon as an
// extension fails, so work guarded by the lock stops before another holder
// can start.
func KeepAlive(ctx context.Context, lease Lease, ttl time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lease.Extend(ctx, ttl); err != nil {
					cancel(err)
					return
				}
			}
		}
	}()
	return ctx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

func key(name string) string {
	return "runlock:" + name
}

// RedisLocker keeps locks in Redis so that exclusivity holds across processes.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// extendScript resets the ttl only when the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key(name), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{rdb: l.rdb, key: key(name), token: token}, nil
}

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend run lock %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLost, l.key)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release run lock %s: %w", l.key, err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-node deployments and tests.
// ttl bounds how long a forgotten lease keeps the lock.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), clock: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[name]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, ErrHeld
	}
	e := localEntry{token: uuid.NewString()}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	l.held[name] = e
	return &localLease{locker: l, name: name, token: e.token}, nil
}

type localLease struct {
	locker *LocalLocker
	name   string
	token  string
}

func (l *localLease) Extend(_ context.Context, ttl time.Duration) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	e, ok := l.locker.held[l.name]
	now := l.locker.clock()
	if !ok || e.token != l.token || (!e.expires.IsZero() && !now.Before(e.expires)) {
		return fmt.Errorf("%w: %s", ErrLost, l.name)
	}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	} else {
		e.expires = time.Time{}
	}
	l.locker.held[l.name] = e
	return nil
}

func (l *localLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if e, ok := l.locker.held[l.name]; ok && e.token == l.token {
		delete(l.locker.held, l.name)
	}
	return nil
}
