//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/config"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.CheckHealth(ctx))

	// Migrations are idempotent.
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	entries, err := store.ListWatchEntries(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Close())
	assert.Error(t, store.CheckHealth(ctx))
}

func TestOpenLocalFileUsesWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "npmwatch.db")

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: "file:" + path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.Equal(t, 1, store.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	assert.Contains(t, journalMode, "wal")

	var busyTimeout int
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.GreaterOrEqual(t, busyTimeout, 1000)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
