package sqlite

import (
	"context"
	"database/sql"
	"time"

	"symbio/internal/model"
)

const milestoneColumns = `id, project_id, title, amount, due_at, status,
       submitted_at, approved_at, paid_at, payout_ref, created_at`

func scanMilestone(row rowScanner) (*model.Milestone, error) {
	var m model.Milestone
	var due, submitted, approved, paid sql.NullInt64
	var created int64
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.Title, &m.Amount, &due, &m.Status,
		&submitted, &approved, &paid, &m.PayoutRef, &created,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	m.DueAt = timePtr(due)
	m.SubmittedAt = timePtr(submitted)
	m.ApprovedAt = timePtr(approved)
	m.PaidAt = timePtr(paid)
	m.CreatedAt = fromMillis(created)
	return &m, nil
}

func (t *tx) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	now := toMillis(t.now())
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO milestones (project_id, title, amount, due_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ProjectID, m.Title, m.Amount, nullMillis(m.DueAt), m.Status, now)
	if err != nil {
		return mapErr(err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	m.CreatedAt = fromMillis(now)
	return nil
}

func (t *tx) GetMilestone(ctx context.Context, id int64) (*model.Milestone, error) {
	return scanMilestone(t.tx.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id))
}

func (t *tx) ListMilestones(ctx context.Context, projectID int64) ([]*model.Milestone, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE project_id = ? ORDER BY id`, projectID)
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
	return casResult(t.tx.ExecContext(ctx, `
		UPDATE milestones
		SET status = ?, submitted_at = ?, approved_at = ?, paid_at = ?, payout_ref = ?
		WHERE id = ? AND status = ?
	`, m.Status, nullMillis(m.SubmittedAt), nullMillis(m.ApprovedAt), nullMillis(m.PaidAt), m.PayoutRef, m.ID, from))
}

func (t *tx) CountMilestonesNotPaid(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM milestones WHERE project_id = ? AND status <> 'PAID'
	`, projectID).Scan(&n)
	return n, mapErr(err)
}

func (t *tx) ClaimMilestonePayout(ctx context.Context, id int64, at, staleBefore time.Time) error {
	return casResult(t.tx.ExecContext(ctx, `
		UPDATE milestones
		SET payout_claimed_at = ?
		WHERE id = ? AND status = 'APPROVED'
		  AND (payout_claimed_at IS NULL OR payout_claimed_at < ?)
	`, toMillis(at), id, toMillis(staleBefore)))
}

func (t *tx) ReleaseMilestonePayout(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE milestones SET payout_claimed_at = NULL WHERE id = ? AND status = 'APPROVED'
	`, id)
	return mapErr(err)
}
