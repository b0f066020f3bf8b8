// Package notify records user notifications together with their outbox event
// inside the caller's transaction, so a notification is delivered only if the
// state change that produced it commits.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "symbio/contracts/mq"
	"symbio/internal/model"
	"symbio/internal/store"
	"symbio/pkg/logger"
	"symbio/pkg/outbox"
	"symbio/pkg/trace"
)

const aggregateType = "notification"

type Emitter struct {
	logger *zap.Logger
}

func NewEmitter(logger *zap.Logger) *Emitter {
	return &Emitter{logger: logger}
}

// Emit 写入通知行和对应的 notification.created outbox 事件
func (e *Emitter) Emit(ctx context.Context, tx store.NotificationTx, n *model.Notification) error {
	if err := tx.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	payload := mqcontracts.NotificationCreatedPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Message:        n.Message,
		ProjectID:      n.ProjectID,
		ProposalID:     n.ProposalID,
		TraceID:        trace.FromContext(ctx),
		CreatedAt:      n.CreatedAt,
	}
	event, err := outbox.NewEvent(aggregateType, &n.ID, mqcontracts.RoutingKeyNotificationCreated, payload)
	if err != nil {
		return err
	}
	if err := tx.InsertOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to enqueue notification event: %w", err)
	}

	logger.WithTrace(ctx, e.logger).Debug("Notification queued",
		zap.Int64("notification_id", n.ID),
		zap.Int64("user_id", n.UserID),
		zap.String("type", n.Type),
	)
	return nil
}

// ProposalSubmitted 通知项目所有者收到新提案
func (e *Emitter) ProposalSubmitted(ctx context.Context, tx store.NotificationTx, project *model.Project, p *model.Proposal) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:     project.OwnerID,
		Type:       model.NotificationProposalSubmitted,
		Message:    fmt.Sprintf("New proposal on %q", project.Title),
		ProjectID:  &project.ID,
		ProposalID: &p.ID,
	})
}

func (e *Emitter) ProposalAccepted(ctx context.Context, tx store.NotificationTx, project *model.Project, p *model.Proposal) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:     p.FreelancerID,
		Type:       model.NotificationProposalAccepted,
		Message:    fmt.Sprintf("Your proposal for %q was accepted", project.Title),
		ProjectID:  &project.ID,
		ProposalID: &p.ID,
	})
}

func (e *Emitter) ProposalRejected(ctx context.Context, tx store.NotificationTx, project *model.Project, p *model.Proposal) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:     p.FreelancerID,
		Type:       model.NotificationProposalRejected,
		Message:    fmt.Sprintf("Your proposal for %q was not selected", project.Title),
		ProjectID:  &project.ID,
		ProposalID: &p.ID,
	})
}

func (e *Emitter) MilestoneSubmitted(ctx context.Context, tx store.NotificationTx, project *model.Project, m *model.Milestone) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:    project.OwnerID,
		Type:      model.NotificationMilestoneSubmitted,
		Message:   fmt.Sprintf("Milestone %q on %q is ready for review", m.Title, project.Title),
		ProjectID: &project.ID,
	})
}

func (e *Emitter) MilestoneApproved(ctx context.Context, tx store.NotificationTx, project *model.Project, m *model.Milestone, userID int64) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:    userID,
		Type:      model.NotificationMilestoneApproved,
		Message:   fmt.Sprintf("Milestone %q on %q was approved", m.Title, project.Title),
		ProjectID: &project.ID,
	})
}

func (e *Emitter) MilestonePaid(ctx context.Context, tx store.NotificationTx, project *model.Project, m *model.Milestone, userID int64) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:    userID,
		Type:      model.NotificationMilestonePaid,
		Message:   fmt.Sprintf("Milestone %q on %q was paid", m.Title, project.Title),
		ProjectID: &project.ID,
	})
}

func (e *Emitter) ReviewReceived(ctx context.Context, tx store.NotificationTx, project *model.Project, r *model.Review) error {
	return e.Emit(ctx, tx, &model.Notification{
		UserID:    r.FreelancerID,
		Type:      model.NotificationReviewReceived,
		Message:   fmt.Sprintf("You received a %d-star review for %q", r.Rating, project.Title),
		ProjectID: &project.ID,
	})
}
