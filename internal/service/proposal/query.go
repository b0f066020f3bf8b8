package proposal

import (
	"context"

	"symbio/internal/apperr"
	"symbio/internal/model"
	"symbio/internal/service"
	"symbio/internal/store"
)

// GetProposal 仅项目所有者和提交者可见
func (s *Service) GetProposal(ctx context.Context, proposalID, actingUserID int64) (*model.Proposal, error) {
	const op = "GetProposal"
	var p *model.Proposal
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if p, err = tx.GetProposal(ctx, proposalID); err != nil {
			return err
		}
		if p.FreelancerID == actingUserID {
			return nil
		}
		project, err := tx.GetProject(ctx, p.ProjectID)
		if err != nil {
			return err
		}
		if project.OwnerID != actingUserID {
			return apperr.Forbidden(op, "proposal %d is not visible to user %d", proposalID, actingUserID)
		}
		return nil
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return p, nil
}

// ListProjectProposals 项目所有者查看全部提案
func (s *Service) ListProjectProposals(ctx context.Context, projectID, actingUserID int64) ([]*model.Proposal, error) {
	const op = "ListProjectProposals"
	var out []*model.Proposal
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if project.OwnerID != actingUserID {
			return apperr.Forbidden(op, "user %d does not own project %d", actingUserID, projectID)
		}
		out, err = tx.ListProposalsByProject(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return out, nil
}

// ListFreelancerProposals freelancer 只能查看自己的提案
func (s *Service) ListFreelancerProposals(ctx context.Context, freelancerID, actingUserID int64) ([]*model.Proposal, error) {
	const op = "ListFreelancerProposals"
	if freelancerID != actingUserID {
		return nil, apperr.Forbidden(op, "cannot list proposals of another user")
	}
	var out []*model.Proposal
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListProposalsByFreelancer(ctx, freelancerID)
		return err
	})
	if err != nil {
		return nil, service.Translate(op, err)
	}
	return out, nil
}
