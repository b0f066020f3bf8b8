// Package proposal implements the proposal lifecycle: submission, acceptance
// and rejection. AcceptProposal is the only path that moves a proposal to
// ACCEPTED and a project to IN_PROGRESS.
package proposal

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/notify"
	"symbio/internal/service"
	"symbio/internal/store"
	"symbio/pkg/logger"
)

type Service struct {
	store   store.Store
	emitter *notify.Emitter
	logger  *zap.Logger
}

func NewService(st store.Store, emitter *notify.Emitter, logger *zap.Logger) *Service {
	return &Service{store: st, emitter: emitter, logger: logger}
}

type SubmitInput struct {
	CoverLetter string
	BidAmount   int64
}

// AcceptResult 描述一次接受提案产生的全部状态变化
type AcceptResult struct {
	Proposal   *model.Proposal
	Project    *model.Project
	Rejected   []*model.Proposal
	TeamMember *model.TeamMember
}

// SubmitProposal 在 OPEN 项目上创建 PENDING 提案并通知项目所有者
func (s *Service) SubmitProposal(ctx context.Context, projectID, freelancerID int64, in SubmitInput) (*model.Proposal, error) {
	const op = "SubmitProposal"
	if in.BidAmount < 0 {
		return nil, apperr.InvalidInput(op, "bid amount must not be negative")
	}

	var created *model.Proposal
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			freelancer, err := tx.GetUser(ctx, freelancerID)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound(op, "freelancer %d not found", freelancerID)
			}
			if err != nil {
				return err
			}
			if freelancer.Role != model.RoleFreelancer {
				return apperr.Forbidden(op, "only freelancers can submit proposals")
			}

			project, err := tx.LockProject(ctx, projectID)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound(op, "project %d not found", projectID)
			}
			if err != nil {
				return err
			}
			if project.Status != model.ProjectOpen {
				return apperr.InvalidState(op, "project %d is %s, not OPEN", project.ID, project.Status)
			}

			active, err := tx.HasActiveProposal(ctx, projectID, freelancerID)
			if err != nil {
				return err
			}
			if active {
				return apperr.Conflict(op, "freelancer %d already has an active proposal on project %d", freelancerID, projectID)
			}

			p := &model.Proposal{
				ProjectID:    projectID,
				FreelancerID: freelancerID,
				CoverLetter:  in.CoverLetter,
				BidAmount:    in.BidAmount,
				Status:       model.ProposalPending,
			}
			if err := tx.CreateProposal(ctx, p); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return apperr.Conflict(op, "freelancer %d already has an active proposal on project %d", freelancerID, projectID)
				}
				return err
			}
			if err := s.emitter.ProposalSubmitted(ctx, tx, project, p); err != nil {
				return err
			}
			created = p
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("project_id", projectID), zap.Int64("freelancer_id", freelancerID))
	}

	logger.WithTrace(ctx, s.logger).Info("Proposal submitted",
		zap.Int64("proposal_id", created.ID),
		zap.Int64("project_id", projectID),
		zap.Int64("freelancer_id", freelancerID),
	)
	return created, nil
}

// AcceptProposal 在一个事务内完成：
//  1. 目标提案 PENDING → ACCEPTED
//  2. 同项目其余 PENDING 提案 → REJECTED
//  3. 项目 OPEN → IN_PROGRESS
//  4. 创建 TeamMember
//  5. 通知被接受和被拒绝的 freelancer
//
// 所有权检查先于状态检查，非所有者总是得到 Forbidden。
func (s *Service) AcceptProposal(ctx context.Context, proposalID, actingUserID int64) (*AcceptResult, error) {
	const op = "AcceptProposal"

	var res *AcceptResult
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			p, project, err := s.loadForDecision(ctx, tx, op, proposalID, actingUserID)
			if err != nil {
				return err
			}
			if project.Status != model.ProjectOpen {
				return apperr.InvalidState(op, "project %d is %s, not OPEN", project.ID, project.Status)
			}

			if err := tx.UpdateProposalStatus(ctx, p.ID, model.ProposalPending, model.ProposalAccepted); err != nil {
				return lostRace(op, err)
			}
			p.Status = model.ProposalAccepted

			rejected, err := tx.RejectPendingProposals(ctx, project.ID, p.ID)
			if err != nil {
				return err
			}

			if err := tx.UpdateProjectStatus(ctx, project.ID, model.ProjectOpen, model.ProjectInProgress); err != nil {
				return lostRace(op, err)
			}
			project.Status = model.ProjectInProgress

			member := &model.TeamMember{
				ProjectID:     project.ID,
				FreelancerID:  p.FreelancerID,
				RoleInProject: model.TeamMemberRoleFreelancer,
			}
			if err := tx.AddTeamMember(ctx, member); err != nil {
				return lostRace(op, err)
			}

			if err := s.emitter.ProposalAccepted(ctx, tx, project, p); err != nil {
				return err
			}
			for _, r := range rejected {
				if err := s.emitter.ProposalRejected(ctx, tx, project, r); err != nil {
					return err
				}
			}

			res = &AcceptResult{Proposal: p, Project: project, Rejected: rejected, TeamMember: member}
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("proposal_id", proposalID), zap.Int64("acting_user_id", actingUserID))
	}

	logger.WithTrace(ctx, s.logger).Info("Proposal accepted",
		zap.Int64("proposal_id", proposalID),
		zap.Int64("project_id", res.Project.ID),
		zap.Int64("freelancer_id", res.Proposal.FreelancerID),
		zap.Int("rejected_count", len(res.Rejected)),
	)
	return res, nil
}

// RejectProposal 只拒绝单个 PENDING 提案，不改动项目和团队
func (s *Service) RejectProposal(ctx context.Context, proposalID, actingUserID int64) (*model.Proposal, error) {
	const op = "RejectProposal"

	var rejected *model.Proposal
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			p, project, err := s.loadForDecision(ctx, tx, op, proposalID, actingUserID)
			if err != nil {
				return err
			}
			if err := tx.UpdateProposalStatus(ctx, p.ID, model.ProposalPending, model.ProposalRejected); err != nil {
				return lostRace(op, err)
			}
			p.Status = model.ProposalRejected
			if err := s.emitter.ProposalRejected(ctx, tx, project, p); err != nil {
				return err
			}
			rejected = p
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err, zap.Int64("proposal_id", proposalID), zap.Int64("acting_user_id", actingUserID))
	}

	logger.WithTrace(ctx, s.logger).Info("Proposal rejected",
		zap.Int64("proposal_id", proposalID),
		zap.Int64("project_id", rejected.ProjectID),
	)
	return rejected, nil
}

// loadForDecision 读取提案并锁住项目，依次检查存在性、所有权、提案状态
func (s *Service) loadForDecision(ctx context.Context, tx store.Tx, op string, proposalID, actingUserID int64) (*model.Proposal, *model.Project, error) {
	p, err := tx.GetProposal(ctx, proposalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound(op, "proposal %d not found", proposalID)
	}
	if err != nil {
		return nil, nil, err
	}

	project, err := tx.LockProject(ctx, p.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound(op, "project %d not found", p.ProjectID)
	}
	if err != nil {
		return nil, nil, err
	}
	if project.OwnerID != actingUserID {
		return nil, nil, apperr.Forbidden(op, "user %d does not own project %d", actingUserID, project.ID)
	}

	// 拿到锁之后重读，看到的是并发事务已提交的状态
	p, err = tx.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != model.ProposalPending {
		return nil, nil, apperr.InvalidState(op, "proposal %d is %s, not PENDING", p.ID, p.Status)
	}
	return p, project, nil
}

// lostRace CAS 失败或唯一约束冲突说明并发事务抢先完成了状态转换
func lostRace(op string, err error) error {
	if errors.Is(err, store.ErrStale) || errors.Is(err, store.ErrDuplicate) {
		return apperr.InvalidState(op, "status changed concurrently")
	}
	return err
}

func (s *Service) fail(ctx context.Context, op string, err error, fields ...zap.Field) error {
	err = service.Translate(op, err)
	log := logger.WithTrace(ctx, s.logger).With(fields...)
	if apperr.KindOf(err) == apperr.KindInternal {
		log.Error(op+" failed", zap.Error(err))
	} else {
		log.Info(op+" refused", zap.Error(err))
	}
	return err
}
