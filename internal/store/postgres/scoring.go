package postgres

import (
	"context"

	"symbio/internal/model"
	"symbio/internal/store"
)

// ListScoringInputs 汇总每个 FREELANCER 的评分输入，按 id 排序
func (t *tx) ListScoringInputs(ctx context.Context) ([]model.ScoringInput, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT u.id,
		       COALESCE((SELECT AVG(r.rating)::float8 FROM reviews r WHERE r.freelancer_id = u.id), 0),
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
	tag, err := t.tx.Exec(ctx, `
		UPDATE profiles SET credibility_score = $1, updated_at = NOW() WHERE user_id = $2
	`, score, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
