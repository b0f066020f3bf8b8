package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1})
	cb.now = func() time.Time { return *now }
	return cb
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestOpensAfterThreshold(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v, want errBoom", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("open breaker should reject without calling fn, err=%v called=%v", err, called)
	}
}

func TestHalfOpenRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&now)
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	now = now.Add(time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", cb.State())
	}
	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("half-open trial call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&now)
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	now = now.Add(time.Minute)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&now)
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, ok)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not trip, state = %v", cb.State())
	}
}

func TestCanceledCallDoesNotCount(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&now)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	}
	if cb.State() != StateClosed {
		t.Fatalf("canceled calls tripped the breaker")
	}
}
