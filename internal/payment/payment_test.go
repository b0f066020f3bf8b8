package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"symbio/pkg/circuitbreaker"
)

type failingGateway struct{ calls int }

func (g *failingGateway) Pay(context.Context, Payout) (string, error) {
	g.calls++
	return "", errors.New("connection refused")
}

func TestLogGatewayReturnsReference(t *testing.T) {
	ref, err := NewLogGateway(zap.NewNop()).Pay(context.Background(), Payout{MilestoneID: 1, Amount: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ref, "pay_") {
		t.Errorf("ref = %q", ref)
	}
}

func TestBreakerGatewayOpensAfterFailures(t *testing.T) {
	next := &failingGateway{}
	g := NewBreakerGateway(next, circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := g.Pay(ctx, Payout{MilestoneID: 1}); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	if next.calls != 2 {
		t.Errorf("gateway called %d times, want 2", next.calls)
	}
	if g.State() != circuitbreaker.StateOpen {
		t.Errorf("state = %s", g.State())
	}
}
