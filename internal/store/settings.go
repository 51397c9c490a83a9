package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	sqlGetSetting = `SELECT value FROM settings WHERE name = ?`

	sqlSetSetting = `INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`
)

// Setting returns the value for name, or "" when it has never been set.
func (s *Store) Setting(ctx context.Context, name string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, sqlGetSetting, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("store: reading setting %s: %w", name, err)
	}

	return value, nil
}

// SetSetting stores or replaces the value for name.
func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	if _, err := s.db.ExecContext(ctx, sqlSetSetting, name, value); err != nil {
		return fmt.Errorf("store: writing setting %s: %w", name, err)
	}

	return nil
}
