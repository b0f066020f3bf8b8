package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"symbio/pkg/outbox"
)

// outboxStore 在事务之外读写 outbox_events，供 dispatcher 使用
type outboxStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ outbox.Store = (*outboxStore)(nil)

const eventColumns = `id, aggregate_type, aggregate_id, routing_key, payload, status,
       retry_count, next_retry_at, created_at, updated_at`

func scanEvent(row rowScanner) (*outbox.Event, error) {
	var e outbox.Event
	var aggregateID, nextRetry sql.NullInt64
	var payload string
	var created, updated int64
	err := row.Scan(&e.ID, &e.AggregateType, &aggregateID, &e.RoutingKey, &payload, &e.Status,
		&e.RetryCount, &nextRetry, &created, &updated)
	if err != nil {
		return nil, err
	}
	e.AggregateID = idPtr(aggregateID)
	e.Payload = []byte(payload)
	e.NextRetryAt = timePtr(nextRetry)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return &e, nil
}

func (s *outboxStore) query(ctx context.Context, query string, args ...any) ([]*outbox.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*outbox.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *outboxStore) GetPendingEvents(ctx context.Context, limit int) ([]*outbox.Event, error) {
	return s.query(ctx, `
		SELECT `+eventColumns+` FROM outbox_events
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id ASC LIMIT ?
	`, toMillis(s.now()), limit)
}

func (s *outboxStore) GetFailedEvents(ctx context.Context, limit int) ([]*outbox.Event, error) {
	return s.query(ctx, `
		SELECT `+eventColumns+` FROM outbox_events WHERE status = 'failed' ORDER BY id DESC LIMIT ?
	`, limit)
}

func (s *outboxStore) GetEventByID(ctx context.Context, eventID int64) (*outbox.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id = ?`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outbox.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (s *outboxStore) MarkAsSent(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'sent', updated_at = ? WHERE id = ?
	`, toMillis(s.now()), eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}

func (s *outboxStore) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	var retryCount int
	err := s.db.QueryRowContext(ctx, `SELECT retry_count FROM outbox_events WHERE id = ?`, eventID).Scan(&retryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return outbox.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get retry count: %w", err)
	}

	now := s.now()
	retryCount++
	status := outbox.StatusPending
	var nextRetry *time.Time
	if retryCount >= maxRetries {
		status = outbox.StatusFailed
	} else {
		next := now.Add(outbox.RetryDelay(retryCount))
		nextRetry = &next
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = ?, retry_count = ?, next_retry_at = ?, updated_at = ? WHERE id = ?
	`, status, retryCount, nullMillis(nextRetry), toMillis(now), eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

func (s *outboxStore) ResetEvent(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = ? WHERE id = ?
	`, toMillis(s.now()), eventID)
	if err != nil {
		return fmt.Errorf("failed to reset event: %w", err)
	}
	return nil
}
