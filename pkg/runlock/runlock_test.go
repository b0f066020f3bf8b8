package runlock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	lease, err := l.Acquire(ctx, "job", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "job", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("second acquire err = %v, want ErrHeld", err)
	}
	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("different name should not be blocked: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "job", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "job", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	now = now.Add(2 * time.Second)
	fresh, err := l.Acquire(ctx, "job", time.Second)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}

	// releasing the expired lease must not drop the new holder's lock
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("release stale: %v", err)
	}
	if _, err := l.Acquire(ctx, "job", time.Second); !errors.Is(err, ErrHeld) {
		t.Fatalf("err = %v, want ErrHeld", err)
	}
	_ = fresh.Release(ctx)
}

func TestKeepAliveHoldsLockPastTTL(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	ttl := 60 * time.Millisecond

	lease, err := l.Acquire(ctx, "job", ttl)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	runCtx, stop := KeepAlive(ctx, lease, ttl)

	// 运行时间远超 ttl，锁仍然被持有
	time.Sleep(4 * ttl)
	if _, err := l.Acquire(ctx, "job", ttl); !errors.Is(err, ErrHeld) {
		t.Fatalf("acquire during long run: err = %v, want ErrHeld", err)
	}
	if runCtx.Err() != nil {
		t.Fatalf("run context cancelled while lease is healthy: %v", context.Cause(runCtx))
	}

	stop()
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "job", ttl); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestKeepAliveCancelsWhenLeaseLost(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	ttl := 30 * time.Millisecond

	lease, err := l.Acquire(ctx, "job", ttl)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	runCtx, stop := KeepAlive(ctx, lease, ttl)
	defer stop()

	// 另一个持有者接管了锁
	l.mu.Lock()
	l.held["job"] = localEntry{token: "other", expires: time.Now().Add(time.Hour)}
	l.mu.Unlock()

	select {
	case <-runCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run context not cancelled after the lease was lost")
	}
	if cause := context.Cause(runCtx); !errors.Is(cause, ErrLost) {
		t.Fatalf("cause = %v, want ErrLost", cause)
	}
}

func TestLocalLeaseExtend(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	lease, err := l.Acquire(ctx, "job", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	now = now.Add(900 * time.Millisecond)
	if err := lease.Extend(ctx, time.Second); err != nil {
		t.Fatalf("extend: %v", err)
	}
	now = now.Add(900 * time.Millisecond)
	if _, err := l.Acquire(ctx, "job", time.Second); !errors.Is(err, ErrHeld) {
		t.Fatalf("acquire after extend: err = %v, want ErrHeld", err)
	}

	now = now.Add(2 * time.Second)
	if err := lease.Extend(ctx, time.Second); !errors.Is(err, ErrLost) {
		t.Fatalf("extend expired lease: err = %v, want ErrLost", err)
	}
}
