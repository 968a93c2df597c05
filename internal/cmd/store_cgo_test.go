//go:build cgo

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/config"
	"github.com/npmwatch/npmwatch/internal/core/store"
	"github.com/npmwatch/npmwatch/internal/core/watch"
)

func TestDefaultRunNeverRefusesLocally(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"dist-tags":{"latest":"1.0.1"},"versions":{"1.0.0":{},"1.0.1":{}}}`))
	}))
	defer server.Close()

	db, err := store.Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { _ = db.Close() })

	cfg := defaultLimiterConfig()
	cfg.Registry.BaseURL = server.URL

	opts, err := watchOptions(newWatchCmd(), cfg)
	require.NoError(t, err)
	node := buildNode(cfg, db, opts)

	const queries = 150
	items := make([]watch.Item, 0, queries)
	for i := 0; i < queries; i++ {
		items = append(items, watch.Item{
			watch.ParamPackageName:  fmt.Sprintf("pkg-%d", i),
			watch.ParamKnownVersion: "1.0.0",
		})
	}
	host := watch.NewItemsHost(items, false)

	require.NoError(t, node.Execute(ctx, host))
	assert.Len(t, host.Records, queries)
	assert.EqualValues(t, queries, hits.Load())
	for _, record := range host.Records {
		assert.False(t, record.IsError(), record.Error)
	}
}
