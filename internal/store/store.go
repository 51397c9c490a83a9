// Package store implements the durable local database: the last-known
// watchlist snapshot, the pending-change queue, and small settings. It
// survives restarts and is shared by the CLI and the daemon. Unavailability
// degrades gracefully — callers run without offline support.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store is the sole gateway to the local database. Both the CLI process and
// the daemon open it; single-connection WAL mode keeps entry-level operations
// atomic without explicit locking.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (or creates) the database at dbPath, applies migrations, and
// returns a ready-to-use Store. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("local store ready", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset drops the snapshot, the pending queue, and all settings. Used only
// on logout — queued changes belong to the account being signed out.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"watchlist_snapshot", "pending_changes", "settings"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: resetting %s: %w", table, err)
		}
	}

	s.logger.Info("local store reset")

	return nil
}
