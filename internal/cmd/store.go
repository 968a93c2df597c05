package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/npmwatch/npmwatch/internal/config"
	"github.com/npmwatch/npmwatch/internal/core/engine"
	"github.com/npmwatch/npmwatch/internal/core/registry"
	"github.com/npmwatch/npmwatch/internal/core/store"
	"github.com/npmwatch/npmwatch/internal/core/watch"
	"github.com/npmwatch/npmwatch/internal/metrics"
	"github.com/npmwatch/npmwatch/internal/observability"
)

func currentConfig(ctx context.Context) (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := currentConfig(ctx)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// buildNode wires the registry client, the watch history and, when enabled,
// the store-backed rate limiter into a Node.
func buildNode(cfg *config.Config, db *store.Store, opts runOptions) *watch.Node {
	client := &registry.NPMClient{
		Client:    &http.Client{Timeout: cfg.Registry.Timeout},
		BaseURL:   cfg.Registry.BaseURL,
		UserAgent: userAgent(cfg),
	}
	if opts.RateLimit && db != nil {
		limiter := &engine.RateLimiter{Store: db}
		limiter.ApplyOverrides(cfg.RateLimits)
		limiter.ApplySafetyMargin(cfg.RateLimitMargin)
		client.Limiter = limiter
	}

	node := &watch.Node{
		Registry: client,
		Track:    opts.Track,
		Logger:   observability.CLILogger,
		OnLookup: metrics.RecordLookup,
	}
	if db != nil {
		node.History = db
	}
	return node
}

func userAgent(cfg *config.Config) string {
	if cfg.Registry.UserAgent != "" {
		return cfg.Registry.UserAgent
	}
	version := versionInfo.Version
	if version == "" {
		version = "dev"
	}
	return "npmwatch/" + version
}
