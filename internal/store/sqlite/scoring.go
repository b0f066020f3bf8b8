package sqlite

import (
	"context"

	"symbio/internal/model"
	"symbio/internal/store"
)

func (t *tx) ListScoringInputs(ctx context.Context) ([]model.ScoringInput, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT u.id,
		       COALESCE((SELECT AVG(r.rating) FROM reviews r WHERE r.freelancer_id = u.id), 0.0),
		       (SELECT COUNT(*) FROM team_members tm
		          JOIN projects p ON p.id = tm.project_id
		         WHERE tm.freelancer_id = u.id AND p.status = 'COMPLETED'),
		       (SELECT COUNT(*) FROM milestones m
		          JOIN team_members tm ON tm.project_id = m.project_id
		         WHERE tm.freelancer_id = u.id AND m.status IN ('APPROVED', 'PAID')
		           AND m.due_at IS NOT NULL AND m.approved_at <= m.due_at),
		       (SELECT COUNT(*) FROM milestones m
		          JOIN team_members tm ON tm.project_id = m.project_id
		         WHERE tm.freelancer_id = u.id AND m.status IN ('APPROVED', 'PAID')
		           AND m.due_at IS NOT NULL)
		FROM users u
		WHERE u.role = 'FREELANCER'
		ORDER BY u.id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.ScoringInput
	for rows.Next() {
		var in model.ScoringInput
		if err := rows.Scan(&in.FreelancerID, &in.AvgRating, &in.CompletedProjects, &in.OnTimeMilestones, &in.DueMilestones); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (t *tx) UpdateCredibilityScore(ctx context.Context, userID int64, score float64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE profiles SET credibility_score = ?, updated_at = ? WHERE user_id = ?
	`, score, toMillis(t.now()), userID)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
