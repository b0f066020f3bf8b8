package sqlite

import (
	"context"
	"database/sql"

	"symbio/internal/model"
	"symbio/internal/store"
	"symbio/pkg/outbox"
)

const notificationColumns = `id, user_id, type, message, project_id, proposal_id, is_read, created_at`

func scanNotification(row rowScanner) (*model.Notification, error) {
	var n model.Notification
	var projectID, proposalID sql.NullInt64
	var created int64
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &projectID, &proposalID, &n.IsRead, &created); err != nil {
		return nil, mapErr(err)
	}
	n.ProjectID = idPtr(projectID)
	n.ProposalID = idPtr(proposalID)
	n.CreatedAt = fromMillis(created)
	return &n, nil
}

func (t *tx) CreateNotification(ctx context.Context, n *model.Notification) error {
	now := toMillis(t.now())
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, message, project_id, proposal_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.UserID, n.Type, n.Message, nullID(n.ProjectID), nullID(n.ProposalID), now)
	if err != nil {
		return mapErr(err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	n.IsRead = false
	n.CreatedAt = fromMillis(now)
	return nil
}

func (t *tx) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	return scanNotification(t.tx.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
}

func (t *tx) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = ? AND (? = 0 OR is_read = 0)
		ORDER BY id DESC
		LIMIT ?
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
	res, err := t.tx.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
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

func (t *tx) InsertOutboxEvent(ctx context.Context, e *outbox.Event) error {
	now := toMillis(t.now())
	if e.Status == "" {
		e.Status = outbox.StatusPending
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, routing_key, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.AggregateType, nullID(e.AggregateID), e.RoutingKey, string(e.Payload), e.Status, now, now)
	if err != nil {
		return mapErr(err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	e.CreatedAt = fromMillis(now)
	e.UpdatedAt = e.CreatedAt
	return nil
}
