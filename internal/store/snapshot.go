package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSnapshot is returned by LatestSnapshot when no snapshot has been
// saved yet. Callers treat it as "render nothing cached", not a failure.
var ErrNoSnapshot = errors.New("store: no snapshot")

// snapshotKey is the fixed singleton key for the watchlist snapshot.
const snapshotKey = "current"

// Snapshot is the last successfully fetched watchlist payload.
type Snapshot struct {
	Data       []byte
	CapturedAt time.Time
}

const (
	sqlSaveSnapshot = `INSERT INTO watchlist_snapshot (key, data, captured_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		 data = excluded.data,
		 captured_at = excluded.captured_at`

	sqlGetSnapshot = `SELECT data, captured_at FROM watchlist_snapshot WHERE key = ?`
)

// SaveSnapshot replaces the singleton snapshot wholesale. Succeeds whether
// or not a previous value existed.
func (s *Store) SaveSnapshot(ctx context.Context, data []byte) error {
	if _, err := s.db.ExecContext(ctx, sqlSaveSnapshot, snapshotKey, data, s.nowFunc().UnixNano()); err != nil {
		return fmt.Errorf("store: saving snapshot: %w", err)
	}

	return nil
}

// LatestSnapshot returns the stored snapshot, or ErrNoSnapshot when none
// has been saved.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		data       []byte
		capturedAt int64
	)

	err := s.db.QueryRowContext(ctx, sqlGetSnapshot, snapshotKey).Scan(&data, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}

	if err != nil {
		return nil, fmt.Errorf("store: loading snapshot: %w", err)
	}

	return &Snapshot{Data: data, CapturedAt: time.Unix(0, capturedAt)}, nil
}
