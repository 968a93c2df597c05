package config

import "time"

// Config is the complete npmwatch configuration. Values are layered, lowest
// precedence first: embedded defaults, the user config file, NPMWATCH_*
// environment variables, runtime overrides.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Registry RegistryConfig `mapstructure:"registry"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`

	// RateLimits overrides the per-minute request budget of registry hosts.
	RateLimits      map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin float64        `mapstructure:"rate_limit_margin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// RegistryConfig points npmwatch at an npm-compatible registry.
type RegistryConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`

	// RateLimit paces lookups with the store-backed limiter. Off by default:
	// the registry's own 429 responses are then the only refusal.
	RateLimit bool `mapstructure:"rate_limit"`
}

// RateLimitEnabled reports whether lookups go through the local limiter.
// Configuring any rate_limits budget turns it on.
func (c *Config) RateLimitEnabled() bool {
	if c == nil {
		return false
	}
	return c.Registry.RateLimit || len(c.RateLimits) > 0
}

// WatchConfig holds the defaults for check runs.
type WatchConfig struct {
	// Track fills missing known versions from, and records results to, the
	// watch history store.
	Track          bool `mapstructure:"track"`
	ContinueOnFail bool `mapstructure:"continue_on_fail"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Profile is the gofulmen logging profile: SIMPLE or STRUCTURED.
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
