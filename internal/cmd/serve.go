package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/config"
	apperrors "github.com/npmwatch/npmwatch/internal/errors"
	"github.com/npmwatch/npmwatch/internal/metrics"
	"github.com/npmwatch/npmwatch/internal/observability"
	"github.com/npmwatch/npmwatch/internal/server"
	"github.com/npmwatch/npmwatch/internal/server/handlers"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return apperrors.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return apperrors.NewValidationError("app identity missing binary name")
	case i.envPrefix == "":
		return apperrors.NewValidationError("app identity missing env prefix")
	case i.configName == "":
		return apperrors.NewValidationError("app identity missing config name")
	}
	return nil
}

const uptimeInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server. POST /v1/watch runs watch items; health, version and
Prometheus metrics endpoints are served alongside.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate configuration`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (default from config)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (default from config)")
	serveCmd.Flags().Bool("continue-on-fail", false, "Default continue-on-fail for requests that do not set it")
	serveCmd.Flags().Bool("track", false, "Fill missing known versions from, and record results to, the watch history")
	serveCmd.Flags().Bool("rate-limit", false, "Pace registry lookups with the stored per-host budgets")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := watchOptions(cmd, cfg)
	if err != nil {
		return err
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()
	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "metrics initialization failed")
		}
	}

	db, err := openStore(ctx)
	if err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "store initialization failed")
	}

	node := buildNode(cfg, db, opts)
	node.Logger = logger

	health := handlers.NewHealthManager(versionInfo.Version)
	if cfg.Health.Enabled {
		health.RegisterChecker("store", db)
		if cfg.Metrics.Enabled {
			health.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		health.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
	}

	handlers.SetAppIdentity(identity)
	handlers.SetRegistryURL(cfg.Registry.BaseURL)

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithWatchNode(node, opts.ContinueOnFail),
		server.WithHealthManager(health),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	)

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("registry", cfg.Registry.BaseURL),
		zap.String("store_driver", db.Driver()),
		zap.Bool("track", opts.Track),
		zap.Bool("continue_on_fail", opts.ContinueOnFail),
		zap.Bool("rate_limit", opts.RateLimit),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	startedAt := time.Now()
	metrics.SetServerStartTime(startedAt.Unix())
	uptimeDone := make(chan struct{})
	go reportUptime(startedAt, uptimeDone)

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Shutdown handlers run LIFO: the server stops first, then the store,
	// then the logger is flushed.
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		close(uptimeDone)
		observability.StopMetrics()
		if err := db.Close(); err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "store close failed")
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server shutdown failed")
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: reloading configuration")
		reloaded, err := config.Load(ctx)
		if err != nil {
			logger.Error("Failed to reload configuration", zap.Error(err))
			return apperrors.Wrap(ctx, apperrors.CodeValidationFailed, err, "config reload failed")
		}
		// The node and listener were built from the previous config.
		logger.Info("Configuration reloaded; restart to apply server, registry or store changes",
			zap.String("log_level", reloaded.Logging.Level),
			zap.String("registry", reloaded.Registry.BaseURL))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server error")
	}
	return nil
}

// serveConfig returns the loaded config with --host and --port applied.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		host, err := cmd.Flags().GetString("host")
		if err != nil {
			return nil, err
		}
		overrides["host"] = host
	}
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return nil, err
		}
		overrides["port"] = port
	}
	if len(overrides) == 0 {
		return currentConfig(cmd.Context())
	}
	return config.Load(cmd.Context(), map[string]any{"server": overrides})
}

func reportUptime(startedAt time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(uptimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
		}
	}
}
