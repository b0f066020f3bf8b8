// Package payment hides the payout provider behind an opaque Gateway.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"symbio/pkg/circuitbreaker"
	"symbio/pkg/logger"
)

// ErrUnavailable 网关不可用（熔断打开或调用失败）
var ErrUnavailable = errors.New("payment gateway unavailable")

// Payout 一次里程碑付款请求
// IdempotencyKey 对同一里程碑恒定，网关据此合并重复请求
type Payout struct {
	MilestoneID    int64
	ProjectID      int64
	PayerID        int64
	Amount         int64
	IdempotencyKey string
}

// IdempotencyKey 里程碑付款的幂等键
func IdempotencyKey(milestoneID int64) string {
	return fmt.Sprintf("milestone-%d", milestoneID)
}

type Gateway interface {
	// Pay 成功时返回网关侧的付款凭证
	Pay(ctx context.Context, p Payout) (string, error)
}

// LogGateway 只记录日志并生成凭证，用于本地和测试环境
type LogGateway struct {
	logger *zap.Logger
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Pay(ctx context.Context, p Payout) (string, error) {
	ref := "pay_" + uuid.NewString()
	logger.WithTrace(ctx, g.logger).Info("Payout recorded",
		zap.Int64("milestone_id", p.MilestoneID),
		zap.Int64("project_id", p.ProjectID),
		zap.Int64("amount", p.Amount),
		zap.String("idempotency_key", p.IdempotencyKey),
		zap.String("payout_ref", ref),
	)
	return ref, nil
}

// BreakerGateway 用熔断器包装下游网关
type BreakerGateway struct {
	next    Gateway
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewBreakerGateway(next Gateway, cfg circuitbreaker.Config, logger *zap.Logger) *BreakerGateway {
	return &BreakerGateway{next: next, breaker: circuitbreaker.New(cfg), logger: logger}
}

func (g *BreakerGateway) Pay(ctx context.Context, p Payout) (string, error) {
	var ref string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ref, err = g.next.Pay(ctx, p)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		logger.WithTrace(ctx, g.logger).Warn("Payment gateway circuit open",
			zap.Int64("milestone_id", p.MilestoneID),
		)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ref, nil
}

// State 供 readyz 展示
func (g *BreakerGateway) State() circuitbreaker.State {
	return g.breaker.State()
}
