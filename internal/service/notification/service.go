package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/service"
	"symbio/internal/store"
	"symbio/pkg/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// List 返回用户的通知，最新的在前
func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	var out []*model.Notification
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListNotifications(ctx, userID, unreadOnly, limit)
		return err
	})
	if err != nil {
		return nil, service.Translate("ListNotifications", err)
	}
	return out, nil
}

// MarkRead 只有接收者可以标记；重复标记不报错
func (s *Service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	const op = "MarkNotificationRead"
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.GetNotification(ctx, notificationID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(op, "notification %d not found", notificationID)
		}
		if err != nil {
			return err
		}
		if n.UserID != userID {
			return apperr.Forbidden(op, "notification %d belongs to another user", notificationID)
		}
		if n.IsRead {
			return nil
		}
		return tx.MarkNotificationRead(ctx, notificationID)
	})
	if err != nil {
		return service.Translate(op, err)
	}

	logger.WithTrace(ctx, s.logger).Debug("Notification marked read",
		zap.Int64("notification_id", notificationID),
		zap.Int64("user_id", userID),
	)
	return nil
}
