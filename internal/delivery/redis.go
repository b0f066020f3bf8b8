// Package delivery pushes notifications to connected users over Redis pub/sub.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mqcontracts "symbio/contracts/mq"
	"symbio/pkg/logger"
)

const channelPrefix = "symbio:notifications:"

// Channel 返回用户的推送频道名
func Channel(userID int64) string {
	return fmt.Sprintf("%s%d", channelPrefix, userID)
}

type Pusher interface {
	Push(ctx context.Context, p mqcontracts.NotificationCreatedPayload) error
}

// RedisPusher 发布到 symbio:notifications:<user_id>
type RedisPusher struct {
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisPusher(rdb *redis.Client, logger *zap.Logger) *RedisPusher {
	return &RedisPusher{rdb: rdb, logger: logger, now: time.Now}
}

func (r *RedisPusher) Push(ctx context.Context, p mqcontracts.NotificationCreatedPayload) error {
	body, err := json.Marshal(mqcontracts.NotificationPushedPayload{
		NotificationID: p.NotificationID,
		Type:           p.Type,
		Message:        p.Message,
		ProjectID:      p.ProjectID,
		ProposalID:     p.ProposalID,
		CreatedAt:      p.CreatedAt,
		PushedAt:       r.now().UTC(),
	})
	if err != nil {
		return err
	}

	receivers, err := r.rdb.Publish(ctx, Channel(p.UserID), body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification %d: %w", p.NotificationID, err)
	}

	logger.WithTrace(ctx, r.logger).Debug("Notification pushed",
		zap.Int64("notification_id", p.NotificationID),
		zap.Int64("user_id", p.UserID),
		zap.Int64("receivers", receivers),
	)
	return nil
}
