package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/config"
	"github.com/npmwatch/npmwatch/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		logger.Info("=== Environment Information ===")
		logger.Info("")

		logger.Info("Application:")
		logger.Info("  Name:       " + identity.BinaryName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info("")

		cfg, err := currentConfig(cmd.Context())
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		logger.Info("Configuration:")
		logger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		logger.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  DB URL:         " + cfg.Store.URL)
		} else {
			logger.Info("  DB Path:        " + cfg.Store.Path)
		}
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		logger.Info("")

		logger.Info("Registry:")
		logger.Info("  Base URL:       "+cfg.Registry.BaseURL, zap.String("registry", cfg.Registry.BaseURL))
		logger.Info("  Timeout:        " + cfg.Registry.Timeout.String())
		logger.Info(fmt.Sprintf("  Rate Margin:    %.2f", cfg.RateLimitMargin))
		for host, budget := range cfg.RateLimits {
			logger.Info(fmt.Sprintf("  Budget %s: %d/min", host, budget))
		}
		logger.Info("")

		logger.Info("Watch:")
		logger.Info(fmt.Sprintf("  Track:            %t", cfg.Watch.Track))
		logger.Info(fmt.Sprintf("  Continue On Fail: %t", cfg.Watch.ContinueOnFail))
		logger.Info("")

		logger.Info("Environment:")
		for _, name := range config.EnvVarNames() {
			if _, ok := os.LookupEnv(name); !ok {
				continue
			}
			value := "(set)"
			if !strings.Contains(name, "TOKEN") {
				value = os.Getenv(name)
			}
			logger.Info("  " + name + "=" + value)
		}
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
