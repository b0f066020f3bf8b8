package milestone

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/notify"
	"symbio/internal/payment"
	"symbio/internal/service"
	"symbio/internal/store"
	"symbio/pkg/logger"
)

// PayoutClaimTTL 付款认领的有效期；进程在认领后崩溃时，过期后可重新付款
const PayoutClaimTTL = 15 * time.Minute

type Service struct {
	store   store.Store
	gateway payment.Gateway
	emitter *notify.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(st store.Store, gateway payment.Gateway, emitter *notify.Emitter, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

type CreateInput struct {
	Title  string
	Amount int64
	DueAt  *time.Time
}

func (s *Service) CreateMilestone(ctx context.Context, projectID, actingUserID int64, in CreateInput) (*model.Milestone, error) {
	const op = "CreateMilestone"
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.InvalidInput(op, "title is required")
	}
	if in.Amount <= 0 {
		return nil, apperr.InvalidInput(op, "amount must be positive")
	}

	m := &model.Milestone{
		ProjectID: projectID,
		Title:     in.Title,
		Amount:    in.Amount,
		DueAt:     in.DueAt,
		Status:    model.MilestonePending,
	}
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			project, err := s.ownedProject(ctx, tx, op, projectID, actingUserID)
			if err != nil {
				return err
			}
			if project.Status != model.ProjectOpen && project.Status != model.ProjectInProgress {
				return apperr.InvalidState(op, "project %d is %s", project.ID, project.Status)
			}
			return tx.CreateMilestone(ctx, m)
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("project_id", projectID))
	}

	logger.WithTrace(ctx, s.logger).Info("Milestone created",
		zap.Int64("milestone_id", m.ID),
		zap.Int64("project_id", projectID),
		zap.Int64("amount", m.Amount),
	)
	return m, nil
}

// SubmitMilestone 团队成员提交交付，PENDING → SUBMITTED
func (s *Service) SubmitMilestone(ctx context.Context, milestoneID, actingUserID int64) (*model.Milestone, error) {
	const op = "SubmitMilestone"
	var out *model.Milestone
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			m, project, err := s.load(ctx, tx, op, milestoneID)
			if err != nil {
				return err
			}
			member, err := tx.IsTeamMember(ctx, project.ID, actingUserID)
			if err != nil {
				return err
			}
			if !member {
				return apperr.Forbidden(op, "user %d is not on the team of project %d", actingUserID, project.ID)
			}
			if err := s.advance(ctx, tx, op, m, model.MilestonePending, model.MilestoneSubmitted); err != nil {
				return err
			}
			out = m
			return s.emitter.MilestoneSubmitted(ctx, tx, project, m)
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("milestone_id", milestoneID))
	}
	return out, nil
}

// ApproveMilestone 所有者验收，SUBMITTED → APPROVED，通知团队
func (s *Service) ApproveMilestone(ctx context.Context, milestoneID, actingUserID int64) (*model.Milestone, error) {
	const op = "ApproveMilestone"
	var out *model.Milestone
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			m, project, err := s.load(ctx, tx, op, milestoneID)
			if err != nil {
				return err
			}
			if project.OwnerID != actingUserID {
				return apperr.Forbidden(op, "user %d does not own project %d", actingUserID, project.ID)
			}
			if err := s.advance(ctx, tx, op, m, model.MilestoneSubmitted, model.MilestoneApproved); err != nil {
				return err
			}
			out = m
			return s.notifyTeam(ctx, tx, project, func(userID int64) error {
				return s.emitter.MilestoneApproved(ctx, tx, project, m, userID)
			})
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("milestone_id", milestoneID))
	}
	return out, nil
}

// PayMilestone APPROVED → PAID
// 先在事务内认领付款，只有认领成功的调用方会访问网关；网关调用在事务外，
// 结果再以 APPROVED 做 compare-and-set 写入
func (s *Service) PayMilestone(ctx context.Context, milestoneID, actingUserID int64) (*model.Milestone, error) {
	const op = "PayMilestone"
	var out *model.Milestone
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		var payout payment.Payout
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			m, project, err := s.load(ctx, tx, op, milestoneID)
			if err != nil {
				return err
			}
			if project.OwnerID != actingUserID {
				return apperr.Forbidden(op, "user %d does not own project %d", actingUserID, project.ID)
			}
			if m.Status != model.MilestoneApproved {
				return apperr.InvalidState(op, "milestone %d is %s, not APPROVED", m.ID, m.Status)
			}
			now := s.now().UTC()
			err = tx.ClaimMilestonePayout(ctx, m.ID, now, now.Add(-PayoutClaimTTL))
			if errors.Is(err, store.ErrStale) {
				return apperr.InvalidState(op, "payout of milestone %d is already in progress", m.ID)
			}
			if err != nil {
				return err
			}
			payout = payment.Payout{
				MilestoneID:    m.ID,
				ProjectID:      project.ID,
				PayerID:        actingUserID,
				Amount:         m.Amount,
				IdempotencyKey: payment.IdempotencyKey(m.ID),
			}
			return nil
		})
		if err != nil {
			return err
		}

		ref, err := s.gateway.Pay(ctx, payout)
		if err != nil {
			s.releaseClaim(ctx, milestoneID)
			return err
		}

		return s.store.InTx(ctx, func(tx store.Tx) error {
			m, project, err := s.load(ctx, tx, op, milestoneID)
			if err != nil {
				return err
			}
			m.PayoutRef = ref
			if err := s.advance(ctx, tx, op, m, model.MilestoneApproved, model.MilestonePaid); err != nil {
				// 已付款但状态被并发修改，保留凭证供人工对账
				logger.WithTrace(ctx, s.logger).Error("Payout recorded but milestone changed concurrently",
					zap.Int64("milestone_id", milestoneID),
					zap.String("payout_ref", ref),
				)
				return err
			}
			out = m
			return s.notifyTeam(ctx, tx, project, func(userID int64) error {
				return s.emitter.MilestonePaid(ctx, tx, project, m, userID)
			})
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("milestone_id", milestoneID))
	}

	logger.WithTrace(ctx, s.logger).Info("Milestone paid",
		zap.Int64("milestone_id", out.ID),
		zap.String("payout_ref", out.PayoutRef),
	)
	return out, nil
}

// releaseClaim 网关失败后释放认领；释放失败时认领在 PayoutClaimTTL 后过期
func (s *Service) releaseClaim(ctx context.Context, milestoneID int64) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.ReleaseMilestonePayout(ctx, milestoneID)
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to release payout claim",
			zap.Int64("milestone_id", milestoneID),
			zap.Error(err),
		)
	}
}

// ListMilestones 项目所有者和团队成员可见
func (s *Service) ListMilestones(ctx context.Context, projectID, actingUserID int64) ([]*model.Milestone, error) {
	const op = "ListMilestones"
	var out []*model.Milestone
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if project.OwnerID != actingUserID {
			member, err := tx.IsTeamMember(ctx, projectID, actingUserID)
			if err != nil {
				return err
			}
			if !member {
				return apperr.Forbidden(op, "milestones of project %d are not visible to user %d", projectID, actingUserID)
			}
		}
		out, err = tx.ListMilestones(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return out, nil
}

// ownedProject 锁住项目行，与 CompleteProject / ArchiveProject 串行
func (s *Service) ownedProject(ctx context.Context, tx store.Tx, op string, projectID, actingUserID int64) (*model.Project, error) {
	project, err := tx.LockProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(op, "project %d not found", projectID)
	}
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actingUserID {
		return nil, apperr.Forbidden(op, "user %d does not own project %d", actingUserID, projectID)
	}
	return project, nil
}

// load 先锁项目行再重新读取里程碑，保证看到的是锁内的最新状态
func (s *Service) load(ctx context.Context, tx store.Tx, op string, milestoneID int64) (*model.Milestone, *model.Project, error) {
	m, err := tx.GetMilestone(ctx, milestoneID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound(op, "milestone %d not found", milestoneID)
	}
	if err != nil {
		return nil, nil, err
	}
	project, err := tx.LockProject(ctx, m.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if m, err = tx.GetMilestone(ctx, milestoneID); err != nil {
		return nil, nil, err
	}
	return m, project, nil
}

// advance 只允许前进一步，并设置对应的时间戳
func (s *Service) advance(ctx context.Context, tx store.Tx, op string, m *model.Milestone, from, to model.MilestoneStatus) error {
	if m.Status != from {
		return apperr.InvalidState(op, "milestone %d is %s, not %s", m.ID, m.Status, from)
	}
	now := s.now().UTC()
	switch to {
	case model.MilestoneSubmitted:
		m.SubmittedAt = &now
	case model.MilestoneApproved:
		m.ApprovedAt = &now
	case model.MilestonePaid:
		m.PaidAt = &now
	}
	m.Status = to
	err := tx.UpdateMilestoneStatus(ctx, m, from)
	if errors.Is(err, store.ErrStale) {
		return apperr.InvalidState(op, "milestone %d changed concurrently", m.ID)
	}
	return err
}

func (s *Service) notifyTeam(ctx context.Context, tx store.Tx, project *model.Project, send func(userID int64) error) error {
	team, err := tx.ListTeamMembers(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, member := range team {
		if err := send(member.FreelancerID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) fail(ctx context.Context, op string, err error, fields ...zap.Field) error {
	err = service.Translate(op, err)
	log := logger.WithTrace(ctx, s.logger).With(zap.String("op", op), zap.Error(err))
	if apperr.KindOf(err) == apperr.KindInternal {
		log.Error("Milestone operation failed", fields...)
	} else {
		log.Info("Milestone operation rejected", fields...)
	}
	return err
}
