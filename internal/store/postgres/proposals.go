package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"symbio/internal/model"
)

const proposalColumns = `id, project_id, freelancer_id, cover_letter, bid_amount, status, created_at, updated_at`

func scanProposal(row pgx.Row) (*model.Proposal, error) {
	var p model.Proposal
	if err := row.Scan(&p.ID, &p.ProjectID, &p.FreelancerID, &p.CoverLetter, &p.BidAmount, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func collectProposals(rows pgx.Rows, err error) ([]*model.Proposal, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) CreateProposal(ctx context.Context, p *model.Proposal) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO proposals (project_id, freelancer_id, cover_letter, bid_amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.ProjectID, p.FreelancerID, p.CoverLetter, p.BidAmount, p.Status).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (t *tx) GetProposal(ctx context.Context, id int64) (*model.Proposal, error) {
	return scanProposal(t.tx.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
}

func (t *tx) HasActiveProposal(ctx context.Context, projectID, freelancerID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM proposals
			WHERE project_id = $1 AND freelancer_id = $2 AND status IN ('PENDING', 'ACCEPTED')
		)
	`, projectID, freelancerID).Scan(&ok)
	return ok, mapErr(err)
}

func (t *tx) ListProposalsByProject(ctx context.Context, projectID int64) ([]*model.Proposal, error) {
	return collectProposals(t.tx.Query(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE project_id = $1 ORDER BY id
	`, projectID))
}

func (t *tx) ListProposalsByFreelancer(ctx context.Context, freelancerID int64) ([]*model.Proposal, error) {
	return collectProposals(t.tx.Query(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE freelancer_id = $1 ORDER BY id DESC
	`, freelancerID))
}

func (t *tx) UpdateProposalStatus(ctx context.Context, id int64, from, to model.ProposalStatus) error {
	return casResult(t.tx.Exec(ctx, `
		UPDATE proposals
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from))
}

func (t *tx) RejectPendingProposals(ctx context.Context, projectID, exceptID int64) ([]*model.Proposal, error) {
	return collectProposals(t.tx.Query(ctx, `
		UPDATE proposals
		SET status = 'REJECTED', updated_at = NOW()
		WHERE project_id = $1 AND id <> $2 AND status = 'PENDING'
		RETURNING `+proposalColumns, projectID, exceptID))
}
