package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"debug":   "DEBUG",
		" Info ":  "INFO",
		"warning": "WARN",
		"WARN":    "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"loud":    "INFO",
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input), "level %q", input)
	}
}

func TestInitLoggers(t *testing.T) {
	t.Run("CLI", func(t *testing.T) {
		InitCLILogger("npmwatch-test", false)
		require.NotNil(t, CLILogger)
		CLILogger.Info("cli logger ready", zap.String("package", "n8n"))
	})

	t.Run("CLIWithLevel", func(t *testing.T) {
		InitCLILogger("npmwatch-test", false, "warn")
		require.NotNil(t, CLILogger)
		CLILogger.Warn("level from config")
	})

	t.Run("CLIVerbose", func(t *testing.T) {
		InitCLILogger("npmwatch-test", true, "error")
		require.NotNil(t, CLILogger)
		CLILogger.Debug("verbose wins over config level")
	})

	t.Run("Server", func(t *testing.T) {
		InitServerLogger("npmwatch-test", "debug", "npmwatch")
		require.NotNil(t, ServerLogger)
		ServerLogger.Info("server logger ready", zap.Int("item", 0))
	})
}
