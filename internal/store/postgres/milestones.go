package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"symbio/internal/model"
)

const milestoneColumns = `id, project_id, title, amount, due_at, status,
       submitted_at, approved_at, paid_at, payout_ref, created_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.Title, &m.Amount, &m.DueAt, &m.Status,
		&m.SubmittedAt, &m.ApprovedAt, &m.PaidAt, &m.PayoutRef, &m.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t *tx) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO milestones (project_id, title, amount, due_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.ProjectID, m.Title, m.Amount, m.DueAt, m.Status).Scan(&m.ID, &m.CreatedAt)
	return mapErr(err)
}

func (t *tx) GetMilestone(ctx context.Context, id int64) (*model.Milestone, error) {
	return scanMilestone(t.tx.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
}

func (t *tx) ListMilestones(ctx context.Context, projectID int64) ([]*model.Milestone, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *tx) UpdateMilestoneStatus(ctx context.Context, m *model.Milestone, from model.MilestoneStatus) error {
	return casResult(t.tx.Exec(ctx, `
		UPDATE milestones
		SET status = $1, submitted_at = $2, approved_at = $3, paid_at = $4, payout_ref = $5
		WHERE id = $6 AND status = $7
	`, m.Status, m.SubmittedAt, m.ApprovedAt, m.PaidAt, m.PayoutRef, m.ID, from))
}

func (t *tx) CountMilestonesNotPaid(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status <> 'PAID'
	`, projectID).Scan(&n)
	return n, mapErr(err)
}

func (t *tx) ClaimMilestonePayout(ctx context.Context, id int64, at, staleBefore time.Time) error {
	return casResult(t.tx.Exec(ctx, `
		UPDATE milestones
		SET payout_claimed_at = $2
		WHERE id = $1 AND status = 'APPROVED'
		  AND (payout_claimed_at IS NULL OR payout_claimed_at < $3)
	`, id, at, staleBefore))
}

func (t *tx) ReleaseMilestonePayout(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE milestones SET payout_claimed_at = NULL WHERE id = $1 AND status = 'APPROVED'
	`, id)
	return mapErr(err)
}
