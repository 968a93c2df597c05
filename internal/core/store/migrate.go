package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS watch_history (
		package_name TEXT PRIMARY KEY,
		latest_version TEXT NOT NULL,
		latest_published_at TEXT,
		previous_version TEXT,
		change_type TEXT,
		first_seen_at INTEGER NOT NULL,
		checked_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_watch_history_checked ON watch_history(checked_at);`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		endpoint TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		window_start INTEGER NOT NULL,
		backoff_until INTEGER,
		last_429_at INTEGER
	);`,
}

// Migrate creates the watch history and rate limit tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	return nil
}
