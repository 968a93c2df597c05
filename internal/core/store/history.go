package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/npmwatch/npmwatch/internal/core"
)

const historyColumns = "package_name, latest_version, latest_published_at, previous_version, change_type, checked_at"

// GetWatchEntry returns the last recorded state of a package, or nil when the
// package has never been tracked.
func (s *Store) GetWatchEntry(ctx context.Context, name string) (*core.WatchEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("package name is required")
	}

	row := s.DB.QueryRowContext(ctx, "SELECT "+historyColumns+" FROM watch_history WHERE package_name = ?", name)
	entry, err := scanWatchEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch watch entry: %w", err)
	}
	return entry, nil
}

// SetWatchEntry records the latest state of a package. The first time a
// package is seen is kept across updates.
func (s *Store) SetWatchEntry(ctx context.Context, entry *core.WatchEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if entry == nil || strings.TrimSpace(entry.PackageName) == "" {
		return errors.New("package name is required")
	}

	checkedAt := entry.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	var changeType sql.NullString
	if entry.ChangeType != nil {
		changeType = sql.NullString{String: string(*entry.ChangeType), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO watch_history (`+historyColumns+`, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(package_name) DO UPDATE SET
			latest_version = excluded.latest_version,
			latest_published_at = excluded.latest_published_at,
			previous_version = excluded.previous_version,
			change_type = excluded.change_type,
			checked_at = excluded.checked_at
	`,
		strings.TrimSpace(entry.PackageName),
		entry.LatestVersion,
		nullString(entry.LatestPublishedAt),
		nullString(entry.PreviousVersion),
		changeType,
		checkedAt.UTC().Unix(),
		checkedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store watch entry: %w", err)
	}
	return nil
}

// ListWatchEntries returns tracked packages, most recently checked first. A
// non-positive limit returns every entry.
func (s *Store) ListWatchEntries(ctx context.Context, limit int) ([]core.WatchEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := "SELECT " + historyColumns + " FROM watch_history ORDER BY checked_at DESC, package_name"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list watch entries: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []core.WatchEntry{}
	for rows.Next() {
		entry, err := scanWatchEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watch entries: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watch entries: %w", err)
	}
	return entries, nil
}

// DeleteWatchEntry forgets a package. It reports whether a row was removed.
func (s *Store) DeleteWatchEntry(ctx context.Context, name string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, "DELETE FROM watch_history WHERE package_name = ?", strings.TrimSpace(name))
	if err != nil {
		return false, fmt.Errorf("delete watch entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete watch entry: %w", err)
	}
	return affected > 0, nil
}

func scanWatchEntry(row scanner) (*core.WatchEntry, error) {
	var (
		entry             core.WatchEntry
		latestPublishedAt sql.NullString
		previousVersion   sql.NullString
		changeType        sql.NullString
		checkedAt         int64
	)
	if err := row.Scan(&entry.PackageName, &entry.LatestVersion, &latestPublishedAt, &previousVersion, &changeType, &checkedAt); err != nil {
		return nil, err
	}

	entry.LatestPublishedAt = stringFromNull(latestPublishedAt)
	entry.PreviousVersion = stringFromNull(previousVersion)
	if changeType.Valid {
		value := core.ChangeType(changeType.String)
		entry.ChangeType = &value
	}
	entry.CheckedAt = time.Unix(checkedAt, 0).UTC()
	return &entry, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringFromNull(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
