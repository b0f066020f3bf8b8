package project

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/notify"
	"symbio/internal/service"
	"symbio/internal/store"
	"symbio/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service struct {
	store   store.Store
	emitter *notify.Emitter
	logger  *zap.Logger
}

func NewService(st store.Store, emitter *notify.Emitter, logger *zap.Logger) *Service {
	return &Service{store: st, emitter: emitter, logger: logger}
}

type CreateInput struct {
	Title       string
	Description string
	Budget      int64
}

// CreateProject 只有 CLIENT 可以创建，初始状态 DRAFT
func (s *Service) CreateProject(ctx context.Context, ownerID int64, in CreateInput) (*model.Project, error) {
	const op = "CreateProject"
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.InvalidInput(op, "title is required")
	}
	if in.Budget < 0 {
		return nil, apperr.InvalidInput(op, "budget must not be negative")
	}

	p := &model.Project{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Status:      model.ProjectDraft,
	}
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			owner, err := tx.GetUser(ctx, ownerID)
			if err != nil {
				return err
			}
			if owner.Role != model.RoleClient {
				return apperr.Forbidden(op, "only clients can create projects")
			}
			return tx.CreateProject(ctx, p)
		})
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}

	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.Int64("project_id", p.ID),
		zap.Int64("owner_id", ownerID),
	)
	return p, nil
}

// PublishProject DRAFT → OPEN
func (s *Service) PublishProject(ctx context.Context, projectID, actingUserID int64) (*model.Project, error) {
	return s.transition(ctx, "PublishProject", projectID, actingUserID, func(ctx context.Context, tx store.Tx, p *model.Project) (model.ProjectStatus, error) {
		if p.Status != model.ProjectDraft {
			return "", apperr.InvalidState("PublishProject", "project %d is %s, not DRAFT", p.ID, p.Status)
		}
		return model.ProjectOpen, nil
	})
}

// CompleteProject IN_PROGRESS → COMPLETED，要求所有里程碑均已支付
func (s *Service) CompleteProject(ctx context.Context, projectID, actingUserID int64) (*model.Project, error) {
	const op = "CompleteProject"
	return s.transition(ctx, op, projectID, actingUserID, func(ctx context.Context, tx store.Tx, p *model.Project) (model.ProjectStatus, error) {
		if p.Status != model.ProjectInProgress {
			return "", apperr.InvalidState(op, "project %d is %s, not IN_PROGRESS", p.ID, p.Status)
		}
		unpaid, err := tx.CountMilestonesNotPaid(ctx, p.ID)
		if err != nil {
			return "", err
		}
		if unpaid > 0 {
			return "", apperr.InvalidState(op, "project %d has %d unpaid milestones", p.ID, unpaid)
		}
		return model.ProjectCompleted, nil
	})
}

// ArchiveProject 允许从 DRAFT / OPEN / COMPLETED 归档；OPEN 项目的待处理提案会被拒绝并通知
func (s *Service) ArchiveProject(ctx context.Context, projectID, actingUserID int64) (*model.Project, error) {
	const op = "ArchiveProject"
	return s.transition(ctx, op, projectID, actingUserID, func(ctx context.Context, tx store.Tx, p *model.Project) (model.ProjectStatus, error) {
		switch p.Status {
		case model.ProjectDraft, model.ProjectCompleted:
		case model.ProjectOpen:
			rejected, err := tx.RejectPendingProposals(ctx, p.ID, 0)
			if err != nil {
				return "", err
			}
			for _, r := range rejected {
				if err := s.emitter.ProposalRejected(ctx, tx, p, r); err != nil {
					return "", err
				}
			}
		default:
			return "", apperr.InvalidState(op, "project %d is %s and cannot be archived", p.ID, p.Status)
		}
		return model.ProjectArchived, nil
	})
}

type transitionFunc func(ctx context.Context, tx store.Tx, p *model.Project) (model.ProjectStatus, error)

// transition 锁住项目、检查所有权，再以 CAS 写入 next 决定的目标状态
func (s *Service) transition(ctx context.Context, op string, projectID, actingUserID int64, next transitionFunc) (*model.Project, error) {
	var out *model.Project
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			p, err := tx.LockProject(ctx, projectID)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound(op, "project %d not found", projectID)
			}
			if err != nil {
				return err
			}
			if p.OwnerID != actingUserID {
				return apperr.Forbidden(op, "user %d does not own project %d", actingUserID, projectID)
			}
			to, err := next(ctx, tx, p)
			if err != nil {
				return err
			}
			if err := tx.UpdateProjectStatus(ctx, p.ID, p.Status, to); err != nil {
				return err
			}
			from := p.Status
			p.Status = to
			out = p

			logger.WithTrace(ctx, s.logger).Info("Project status changed",
				zap.String("op", op),
				zap.Int64("project_id", p.ID),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
			)
			return nil
		})
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return out, nil
}

// GetProject OPEN 项目公开可见；其余状态只对所有者和团队成员可见。
// actingUserID 为 0 表示匿名访问。
func (s *Service) GetProject(ctx context.Context, projectID, actingUserID int64) (*model.Project, error) {
	const op = "GetProject"
	var p *model.Project
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p.Status == model.ProjectOpen {
			return nil
		}
		visible, err := visibleTo(ctx, tx, p, actingUserID)
		if err != nil {
			return err
		}
		if !visible {
			return apperr.Forbidden(op, "project %d is not visible to user %d", projectID, actingUserID)
		}
		return nil
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return p, nil
}

func visibleTo(ctx context.Context, tx store.Tx, p *model.Project, userID int64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	if p.OwnerID == userID {
		return true, nil
	}
	return tx.IsTeamMember(ctx, p.ID, userID)
}

// ListOpenProjects 分页列出 OPEN 项目，最新的在前
func (s *Service) ListOpenProjects(ctx context.Context, limit, offset int) ([]*model.Project, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	var out []*model.Project
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListProjectsByStatus(ctx, model.ProjectOpen, limit, offset)
		return err
	})
	if err != nil {
		return nil, service.Translate("ListOpenProjects", err)
	}
	return out, nil
}

// ListTeam 项目所有者和团队成员可见
func (s *Service) ListTeam(ctx context.Context, projectID, actingUserID int64) ([]*model.TeamMember, error) {
	const op = "ListTeam"
	var out []*model.TeamMember
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		visible, err := visibleTo(ctx, tx, p, actingUserID)
		if err != nil {
			return err
		}
		if !visible {
			return apperr.Forbidden(op, "team of project %d is not visible to user %d", projectID, actingUserID)
		}
		out, err = tx.ListTeamMembers(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return out, nil
}
