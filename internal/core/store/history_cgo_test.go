//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/config"
	"github.com/npmwatch/npmwatch/internal/core"
)

func openMigrated(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWatchHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	missing, err := store.GetWatchEntry(ctx, "example")
	require.NoError(t, err)
	require.Nil(t, missing)

	published := "2021-01-01T00:00:00.000Z"
	previous := "1.1.0"
	major := core.ChangeMajor
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetWatchEntry(ctx, &core.WatchEntry{
		PackageName:       "example",
		LatestVersion:     "2.0.0",
		LatestPublishedAt: &published,
		PreviousVersion:   &previous,
		ChangeType:        &major,
		CheckedAt:         first,
	}))

	entry, err := store.GetWatchEntry(ctx, "example")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2.0.0", entry.LatestVersion)
	require.Equal(t, published, *entry.LatestPublishedAt)
	require.Equal(t, previous, *entry.PreviousVersion)
	require.Equal(t, core.ChangeMajor, *entry.ChangeType)
	require.Equal(t, first, entry.CheckedAt)

	second := first.Add(time.Hour)
	require.NoError(t, store.SetWatchEntry(ctx, &core.WatchEntry{
		PackageName:   "example",
		LatestVersion: "2.0.1",
		CheckedAt:     second,
	}))

	entry, err = store.GetWatchEntry(ctx, "example")
	require.NoError(t, err)
	require.Equal(t, "2.0.1", entry.LatestVersion)
	require.Nil(t, entry.ChangeType)
	require.Nil(t, entry.LatestPublishedAt)

	var firstSeen int64
	require.NoError(t, store.DB.QueryRowContext(ctx, "SELECT first_seen_at FROM watch_history WHERE package_name = ?", "example").Scan(&firstSeen))
	require.Equal(t, first.Unix(), firstSeen)
}

func TestWatchHistoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"alpha", "beta", "@scope/gamma"} {
		require.NoError(t, store.SetWatchEntry(ctx, &core.WatchEntry{
			PackageName:   name,
			LatestVersion: "1.0.0",
			CheckedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.ListWatchEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "@scope/gamma", entries[0].PackageName)
	require.Equal(t, "alpha", entries[2].PackageName)

	limited, err := store.ListWatchEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	removed, err := store.DeleteWatchEntry(ctx, "beta")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = store.DeleteWatchEntry(ctx, "beta")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestRateLimitStore(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	state, err := store.GetRateLimit(ctx, "registry.npmjs.org")
	require.NoError(t, err)
	require.Nil(t, state)

	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	backoff := windowStart.Add(30 * time.Second)
	require.NoError(t, store.UpdateRateLimit(ctx, "registry.npmjs.org", &core.RateLimitState{
		RequestCount: 3,
		WindowStart:  windowStart,
		BackoffUntil: &backoff,
	}))
	require.NoError(t, store.UpdateRateLimit(ctx, "registry.yarnpkg.com", &core.RateLimitState{
		RequestCount: 1,
		WindowStart:  windowStart,
	}))

	state, err = store.GetRateLimit(ctx, "registry.npmjs.org")
	require.NoError(t, err)
	require.Equal(t, 3, state.RequestCount)
	require.Equal(t, windowStart, state.WindowStart)
	require.Equal(t, backoff, *state.BackoffUntil)
	require.Nil(t, state.Last429At)

	entries, err := store.ListRateLimits(ctx, RateLimitQuery{Prefix: "registry.npm"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = store.ListRateLimits(ctx, RateLimitQuery{})
	require.Error(t, err)

	removed, err := store.ResetRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)
}
