package mq

import "time"

// RoutingKeyNotificationCreated 通知写入后经 outbox 投递的事件
const RoutingKeyNotificationCreated = "notification.created"

type NotificationCreatedPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	ProjectID      *int64    `json:"project_id,omitempty"`
	ProposalID     *int64    `json:"proposal_id,omitempty"`
	TraceID        string    `json:"trace_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationPushedPayload 推送到 Redis 频道的消息体
type NotificationPushedPayload struct {
	NotificationID int64     `json:"notification_id"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	ProjectID      *int64    `json:"project_id,omitempty"`
	ProposalID     *int64    `json:"proposal_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	PushedAt       time.Time `json:"pushed_at"`
}
