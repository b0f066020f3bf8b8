package postgres

import (
	"context"

	"symbio/internal/model"
)

func (t *tx) CreateReview(ctx context.Context, r *model.Review) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reviews (project_id, reviewer_id, freelancer_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.ProjectID, r.ReviewerID, r.FreelancerID, r.Rating, r.Comment).Scan(&r.ID, &r.CreatedAt)
	return mapErr(err)
}

func (t *tx) ListReviewsForFreelancer(ctx context.Context, freelancerID int64) ([]*model.Review, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, project_id, reviewer_id, freelancer_id, rating, comment, created_at
		FROM reviews
		WHERE freelancer_id = $1
		ORDER BY id DESC
	`, freelancerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.ReviewerID, &r.FreelancerID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
