package sqlite

import (
	"context"
	"database/sql"

	"symbio/internal/model"
)

const proposalColumns = `id, project_id, freelancer_id, cover_letter, bid_amount, status, created_at, updated_at`

func scanProposal(row rowScanner) (*model.Proposal, error) {
	var p model.Proposal
	var created, updated int64
	if err := row.Scan(&p.ID, &p.ProjectID, &p.FreelancerID, &p.CoverLetter, &p.BidAmount, &p.Status, &created, &updated); err != nil {
		return nil, mapErr(err)
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func collectProposals(rows *sql.Rows, err error) ([]*model.Proposal, error) {
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
	now := toMillis(t.now())
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO proposals (project_id, freelancer_id, cover_letter, bid_amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ProjectID, p.FreelancerID, p.CoverLetter, p.BidAmount, p.Status, now, now)
	if err != nil {
		return mapErr(err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	p.CreatedAt = fromMillis(now)
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (t *tx) GetProposal(ctx context.Context, id int64) (*model.Proposal, error) {
	return scanProposal(t.tx.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id))
}

func (t *tx) HasActiveProposal(ctx context.Context, projectID, freelancerID int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM proposals
		WHERE project_id = ? AND freelancer_id = ? AND status IN ('PENDING', 'ACCEPTED')
	`, projectID, freelancerID).Scan(&n)
	return n > 0, mapErr(err)
}

func (t *tx) ListProposalsByProject(ctx context.Context, projectID int64) ([]*model.Proposal, error) {
	return collectProposals(t.tx.QueryContext(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE project_id = ? ORDER BY id
	`, projectID))
}

func (t *tx) ListProposalsByFreelancer(ctx context.Context, freelancerID int64) ([]*model.Proposal, error) {
	return collectProposals(t.tx.QueryContext(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE freelancer_id = ? ORDER BY id DESC
	`, freelancerID))
}

func (t *tx) UpdateProposalStatus(ctx context.Context, id int64, from, to model.ProposalStatus) error {
	return casResult(t.tx.ExecContext(ctx, `
		UPDATE proposals SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, to, toMillis(t.now()), id, from))
}

func (t *tx) RejectPendingProposals(ctx context.Context, projectID, exceptID int64) ([]*model.Proposal, error) {
	return collectProposals(t.tx.QueryContext(ctx, `
		UPDATE proposals SET status = 'REJECTED', updated_at = ?
		WHERE project_id = ? AND id <> ? AND status = 'PENDING'
		RETURNING `+proposalColumns, toMillis(t.now()), projectID, exceptID))
}
