package cmd

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/npmwatch/npmwatch/internal/errors"
	"github.com/npmwatch/npmwatch/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that configuration loads, the registry URL is usable and the store opens.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			return &exitError{
				code: foundry.ExitConfigInvalid,
				msg:  "Version information missing",
				err:  apperrors.NewValidationError("version information missing"),
			}
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := currentConfig(cmd.Context())
		if err != nil {
			return &exitError{code: foundry.ExitConfigInvalid, msg: "Configuration invalid", err: err}
		}
		logger.Info("✅ Configuration loaded")

		if err := checkRegistryURL(cfg.Registry.BaseURL); err != nil {
			return &exitError{code: foundry.ExitConfigInvalid, msg: "Registry URL invalid", err: err}
		}
		logger.Info("✅ Registry URL valid", zap.String("registry", cfg.Registry.BaseURL))

		if err := checkStore(cmd.Context()); err != nil {
			return &exitError{code: foundry.ExitFailure, msg: "Store unavailable", err: err}
		}
		logger.Info("✅ Store reachable", zap.String("driver", cfg.Store.Driver))

		logger.Info("✅ All health checks passed")
		return nil
	},
}

func checkRegistryURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("registry url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("registry url %q has no host", raw)
	}
	return nil
}

func checkStore(ctx context.Context) error {
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup
	return db.CheckHealth(ctx)
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
