package sqlite

import (
	"context"

	"symbio/internal/model"
)

func (t *tx) CreateReview(ctx context.Context, r *model.Review) error {
	now := toMillis(t.now())
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO reviews (project_id, reviewer_id, freelancer_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ProjectID, r.ReviewerID, r.FreelancerID, r.Rating, r.Comment, now)
	if err != nil {
		return mapErr(err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	r.CreatedAt = fromMillis(now)
	return nil
}

func (t *tx) ListReviewsForFreelancer(ctx context.Context, freelancerID int64) ([]*model.Review, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, project_id, reviewer_id, freelancer_id, rating, comment, created_at
		FROM reviews WHERE freelancer_id = ? ORDER BY id DESC
	`, freelancerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Review
	for rows.Next() {
		var r model.Review
		var created int64
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.ReviewerID, &r.FreelancerID, &r.Rating, &r.Comment, &created); err != nil {
			return nil, mapErr(err)
		}
		r.CreatedAt = fromMillis(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}
