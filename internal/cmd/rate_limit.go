package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/npmwatch/npmwatch/internal/config"
	"github.com/npmwatch/npmwatch/internal/core/engine"
	"github.com/npmwatch/npmwatch/internal/core/store"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Manage persisted registry rate limit state",
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

// rateLimitView is the listed form of one endpoint's limiter window.
type rateLimitView struct {
	Endpoint     string     `json:"endpoint"`
	RequestCount int        `json:"request_count"`
	Budget       int        `json:"budget"`
	Window       string     `json:"window"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	Last429At    *time.Time `json:"last_429_at,omitempty"`
}

// rateLimitViews pairs stored state with the budget the limiter would apply
// under cfg.
func rateLimitViews(cfg *config.Config, entries []store.RateLimitEntry) []rateLimitView {
	limiter := &engine.RateLimiter{}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)

	views := make([]rateLimitView, 0, len(entries))
	for _, entry := range entries {
		limit := limiter.Limit(entry.Endpoint)
		views = append(views, rateLimitView{
			Endpoint:     entry.Endpoint,
			RequestCount: entry.State.RequestCount,
			Budget:       limit.RequestsPerWindow,
			Window:       limit.WindowDuration.String(),
			WindowStart:  entry.State.WindowStart.UTC(),
			BackoffUntil: entry.State.BackoffUntil,
			Last429At:    entry.State.Last429At,
		})
	}
	return views
}
