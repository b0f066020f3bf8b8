package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/config"
	"symbio/internal/bootstrap"
	"symbio/internal/handler"
	"symbio/internal/httpserver"
	"symbio/pkg/logger"
	"symbio/pkg/mq"
	"symbio/pkg/outbox"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := bootstrap.InitTelemetry(ctx, *cfg, "api", log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// Init store
	st, err := bootstrap.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Store initialization failed", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	svc := bootstrap.NewServices(st, *cfg, log)

	handlers := httpserver.Handlers{
		Account:      handler.NewAccountHandler(svc.Account, log),
		Project:      handler.NewProjectHandler(svc.Project, log),
		Proposal:     handler.NewProposalHandler(svc.Proposal, log),
		Milestone:    handler.NewMilestoneHandler(svc.Milestone, log),
		Review:       handler.NewReviewHandler(svc.Review, log),
		Notification: handler.NewNotificationHandler(svc.Notification, log),
	}

	// 管理接口需要 MQ 重放 outbox 事件
	if cfg.Server.AdminToken != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
		handlers.Admin = handler.NewAdminHandler(outbox.NewReplayService(st.Outbox(), publisher, log), log)
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpserver.NewRouter(handlers, httpserver.Options{
		JWTSecret:  cfg.JWT.Secret,
		AdminToken: cfg.Server.AdminToken,
		WriteRPS:   cfg.Server.WriteRPS,
		WriteBurst: cfg.Server.WriteBurst,
		Ready: map[string]httpserver.Checker{
			"db": st.Ping,
		},
	}, log)

	log.Info("Starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Serve(ctx, cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("API server stopped")
}
