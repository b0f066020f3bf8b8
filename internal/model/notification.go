package model

import "time"

// 通知类型
const (
	NotificationProposalSubmitted  = "proposal_submitted"
	NotificationProposalAccepted   = "proposal_accepted"
	NotificationProposalRejected   = "proposal_rejected"
	NotificationMilestoneSubmitted = "milestone_submitted"
	NotificationMilestoneApproved  = "milestone_approved"
	NotificationMilestonePaid      = "milestone_paid"
	NotificationReviewReceived     = "review_received"
)

// Notification 只追加；is_read 只能由接收者修改
type Notification struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	ProjectID  *int64    `json:"project_id,omitempty"`
	ProposalID *int64    `json:"proposal_id,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}
