package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"symbio/internal/model"
	"symbio/internal/store"
)

const notificationColumns = `id, user_id, type, message, project_id, proposal_id, is_read, created_at`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.ProjectID, &n.ProposalID, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &n, nil
}

func (t *tx) CreateNotification(ctx context.Context, n *model.Notification) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, message, project_id, proposal_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`, n.UserID, n.Type, n.Message, n.ProjectID, n.ProposalID).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	return mapErr(err)
}

func (t *tx) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	return scanNotification(t.tx.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
}

func (t *tx) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY id DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (t *tx) MarkNotificationRead(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
