package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "symbio/contracts/mq"
	"symbio/internal/apperr"
	"symbio/internal/delivery"
	"symbio/pkg/logger"
	"symbio/pkg/metrics"
)

const handlerName = "notification_push"

// Deduper 由 util.Deduper 实现
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, id int64) bool
	Release(ctx context.Context, handler string, id int64)
}

type NotificationCreatedHandler struct {
	pusher  delivery.Pusher
	deduper Deduper
	logger  *zap.Logger
}

func NewNotificationCreatedHandler(pusher delivery.Pusher, deduper Deduper, logger *zap.Logger) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		pusher:  pusher,
		deduper: deduper,
		logger:  logger,
	}
}

// Handle -- 按 notification_id 去重后推送给在线用户
func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal notification created payload", zap.Error(err))
		return err
	}
	if p.NotificationID <= 0 || p.UserID <= 0 {
		metrics.IncrementNotificationDelivered(p.Type, "invalid")
		return apperr.InvalidInput("NotificationCreated", "payload missing notification or user id")
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("notification_id", p.NotificationID),
		zap.Int64("user_id", p.UserID),
		zap.String("type", p.Type),
	)

	if !h.deduper.AcquireOnce(ctx, handlerName, p.NotificationID) {
		metrics.IncrementNotificationDelivered(p.Type, "duplicate")
		return nil
	}

	if err := h.pusher.Push(ctx, p); err != nil {
		// 释放去重键，重投时可以再次推送
		h.deduper.Release(ctx, handlerName, p.NotificationID)
		metrics.IncrementNotificationDelivered(p.Type, "failed")
		log.Error("Failed to push notification", zap.Error(err))
		return err
	}

	metrics.IncrementNotificationDelivered(p.Type, "delivered")
	log.Info("Notification delivered")
	return nil
}
