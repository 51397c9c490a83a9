package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PendingChange is one durably queued mutation awaiting replay. Records are
// created on failure-while-attempting or while offline, destroyed after a
// confirmed-successful replay, and never mutated in place (the attempts
// counter is diagnostic only).
type PendingChange struct {
	ID             int64
	Method         string
	URL            string
	Header         http.Header
	Body           []byte
	IdempotencyKey string
	EnqueuedAt     time.Time
	Attempts       int
}

const (
	sqlEnqueue = `INSERT INTO pending_changes
		(method, url, headers, body, idempotency_key, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqlListPending = `SELECT id, method, url, headers, body, idempotency_key,
		enqueued_at, attempts
		FROM pending_changes`

	sqlRemovePending = `DELETE FROM pending_changes WHERE id = ?`

	sqlCountPending = `SELECT COUNT(*) FROM pending_changes`

	sqlMarkAttempt = `UPDATE pending_changes SET attempts = attempts + 1 WHERE id = ?`
)

// Enqueue appends a PendingChange with a fresh identifier and timestamp and
// returns the generated identifier.
func (s *Store) Enqueue(ctx context.Context, change PendingChange) (int64, error) {
	headers, err := json.Marshal(change.Header)
	if err != nil {
		return 0, fmt.Errorf("store: encoding headers: %w", err)
	}

	res, err := s.db.ExecContext(ctx, sqlEnqueue,
		change.Method, change.URL, string(headers), change.Body,
		change.IdempotencyKey, s.nowFunc().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("store: enqueueing change: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: reading generated id: %w", err)
	}

	return id, nil
}

// ListPending returns all pending changes. The store does not order them —
// replay ordering is the sync engine's responsibility.
func (s *Store) ListPending(ctx context.Context) ([]PendingChange, error) {
	rows, err := s.db.QueryContext(ctx, sqlListPending)
	if err != nil {
		return nil, fmt.Errorf("store: listing pending changes: %w", err)
	}
	defer rows.Close()

	var changes []PendingChange

	for rows.Next() {
		var (
			c          PendingChange
			headers    string
			enqueuedAt int64
		)

		if err := rows.Scan(&c.ID, &c.Method, &c.URL, &headers, &c.Body,
			&c.IdempotencyKey, &enqueuedAt, &c.Attempts); err != nil {
			return nil, fmt.Errorf("store: scanning pending change: %w", err)
		}

		if err := json.Unmarshal([]byte(headers), &c.Header); err != nil {
			return nil, fmt.Errorf("store: decoding headers for change %d: %w", c.ID, err)
		}

		c.EnqueuedAt = time.Unix(0, enqueuedAt)
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating pending changes: %w", err)
	}

	return changes, nil
}

// RemovePending deletes one record by identifier. Removing a non-existent
// id is a no-op, not an error — two overlapping drain passes may both try.
func (s *Store) RemovePending(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, sqlRemovePending, id); err != nil {
		return fmt.Errorf("store: removing pending change %d: %w", id, err)
	}

	return nil
}

// CountPending returns the queue depth.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlCountPending).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting pending changes: %w", err)
	}

	return n, nil
}

// MarkAttempt bumps the attempts counter for one record. Diagnostic only;
// failure to record an attempt never blocks the drain.
func (s *Store) MarkAttempt(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, sqlMarkAttempt, id); err != nil {
		return fmt.Errorf("store: marking attempt on change %d: %w", id, err)
	}

	return nil
}
