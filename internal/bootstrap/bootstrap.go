// Package bootstrap wires configuration into stores and services for the
// symbio binaries.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"symbio/config"
	"symbio/internal/notify"
	"symbio/internal/payment"
	"symbio/internal/service/account"
	"symbio/internal/service/milestone"
	"symbio/internal/service/notification"
	"symbio/internal/service/project"
	"symbio/internal/service/proposal"
	"symbio/internal/service/review"
	"symbio/internal/store"
	"symbio/internal/store/postgres"
	"symbio/internal/store/sqlite"
	pkgconfig "symbio/pkg/config"
	"symbio/pkg/db"
	"symbio/pkg/otel"
)

// OpenStore 按 db.driver 打开 postgres 或 sqlite
func OpenStore(ctx context.Context, cfg pkgconfig.DBConfig, logger *zap.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool, logger), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

// InitTelemetry 初始化 OpenTelemetry，serviceName 为空时使用配置值
func InitTelemetry(ctx context.Context, cfg config.Config, serviceName string, logger *zap.Logger) (func(context.Context) error, error) {
	if cfg.Telemetry.ServiceName != "" {
		serviceName = cfg.Telemetry.ServiceName + "-" + serviceName
	}
	return otel.Init(ctx, otel.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Enabled:     cfg.Telemetry.Enabled,
	}, logger)
}

type Services struct {
	Account      *account.Service
	Project      *project.Service
	Proposal     *proposal.Service
	Milestone    *milestone.Service
	Review       *review.Service
	Notification *notification.Service
	Gateway      *payment.BreakerGateway
}

func NewServices(st store.Store, cfg config.Config, logger *zap.Logger) *Services {
	emitter := notify.NewEmitter(logger)
	gateway := payment.NewBreakerGateway(payment.NewLogGateway(logger), cfg.Payment.Breaker(), logger)
	return &Services{
		Account:      account.NewService(st, cfg.JWT.Secret, cfg.JWT.TTL, logger),
		Project:      project.NewService(st, emitter, logger),
		Proposal:     proposal.NewService(st, emitter, logger),
		Milestone:    milestone.NewService(st, gateway, emitter, logger),
		Review:       review.NewService(st, emitter, logger),
		Notification: notification.NewService(st, logger),
		Gateway:      gateway,
	}
}
