package review

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

type CreateInput struct {
	FreelancerID int64
	Rating       int
	Comment      string
}

// CreateReview 项目完成后由所有者评价团队中的 freelancer，每对只能评价一次
func (s *Service) CreateReview(ctx context.Context, projectID, reviewerID int64, in CreateInput) (*model.Review, error) {
	const op = "CreateReview"
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.InvalidInput(op, "rating must be between 1 and 5")
	}

	r := &model.Review{
		ProjectID:    projectID,
		ReviewerID:   reviewerID,
		FreelancerID: in.FreelancerID,
		Rating:       in.Rating,
		Comment:      in.Comment,
	}
	err := service.Observe(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			project, err := tx.GetProject(ctx, projectID)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound(op, "project %d not found", projectID)
			}
			if err != nil {
				return err
			}
			if project.OwnerID != reviewerID {
				return apperr.Forbidden(op, "user %d does not own project %d", reviewerID, projectID)
			}
			if project.Status != model.ProjectCompleted {
				return apperr.InvalidState(op, "project %d is %s, not COMPLETED", projectID, project.Status)
			}
			member, err := tx.IsTeamMember(ctx, projectID, in.FreelancerID)
			if err != nil {
				return err
			}
			if !member {
				return apperr.InvalidInput(op, "user %d is not on the team of project %d", in.FreelancerID, projectID)
			}
			if err := tx.CreateReview(ctx, r); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return apperr.Conflict(op, "freelancer %d was already reviewed for project %d", in.FreelancerID, projectID)
				}
				return err
			}
			return s.emitter.ReviewReceived(ctx, tx, project, r)
		})
	})
	if err != nil {
		err = service.Translate(op, err)
		logger.WithTrace(ctx, s.logger).Info("Review rejected",
			zap.Int64("project_id", projectID),
			zap.Int64("freelancer_id", in.FreelancerID),
			zap.Error(err),
		)
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Review created",
		zap.Int64("review_id", r.ID),
		zap.Int64("project_id", projectID),
		zap.Int64("freelancer_id", in.FreelancerID),
		zap.Int("rating", r.Rating),
	)
	return r, nil
}

func (s *Service) ListForFreelancer(ctx context.Context, freelancerID int64) ([]*model.Review, error) {
	var out []*model.Review
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListReviewsForFreelancer(ctx, freelancerID)
		return err
	})
	if err != nil {
		return nil, service.Translate("ListReviews", err)
	}
	return out, nil
}
