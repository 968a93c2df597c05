// Package config loads npmwatch configuration. Embedded defaults are layered
// under the user's config file, NPMWATCH_* environment variables and runtime
// overrides, then decoded into Config.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/npmwatch/npmwatch/internal/appid"
)

// keyDelimiter separates nested keys. Registry hosts used as rate_limits keys
// contain dots, so viper's default delimiter cannot be used.
const keyDelimiter = "::"

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity

	// explicitFile is set by --config and replaces config file discovery.
	explicitFile string
)

// envBinding maps one environment variable, without prefix, to a config key.
type envBinding struct {
	Name string
	Path []string
}

var envBindings = []envBinding{
	{Name: "HOST", Path: []string{"server", "host"}},
	{Name: "PORT", Path: []string{"server", "port"}},
	{Name: "READ_TIMEOUT", Path: []string{"server", "read_timeout"}},
	{Name: "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}},
	{Name: "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}},
	{Name: "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}},

	{Name: "LOG_LEVEL", Path: []string{"logging", "level"}},
	{Name: "LOG_PROFILE", Path: []string{"logging", "profile"}},

	{Name: "DB_DRIVER", Path: []string{"store", "driver"}},
	{Name: "DB_PATH", Path: []string{"store", "path"}},
	{Name: "DB_URL", Path: []string{"store", "url"}},
	{Name: "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}},

	{Name: "REGISTRY_URL", Path: []string{"registry", "base_url"}},
	{Name: "REGISTRY_TIMEOUT", Path: []string{"registry", "timeout"}},
	{Name: "REGISTRY_USER_AGENT", Path: []string{"registry", "user_agent"}},
	{Name: "REGISTRY_RATE_LIMIT", Path: []string{"registry", "rate_limit"}},

	{Name: "WATCH_TRACK", Path: []string{"watch", "track"}},
	{Name: "WATCH_CONTINUE_ON_FAIL", Path: []string{"watch", "continue_on_fail"}},

	{Name: "METRICS_ENABLED", Path: []string{"metrics", "enabled"}},
	{Name: "METRICS_PORT", Path: []string{"metrics", "port"}},
	{Name: "HEALTH_ENABLED", Path: []string{"health", "enabled"}},

	{Name: "RATE_LIMIT_MARGIN", Path: []string{"rate_limit_margin"}},
}

// UseFile makes Load read path instead of discovering the user config file.
// An empty path restores discovery.
func UseFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	explicitFile = strings.TrimSpace(path)
}

// Load builds the configuration and makes it the current one. It is safe to
// call repeatedly; every call starts again from the defaults.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return nil, fmt.Errorf("failed to read config defaults: %w", err)
	}

	if path := userConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	prefix := appid.EnvPrefix(appIdentity)
	for _, binding := range envBindings {
		if err := v.BindEnv(strings.Join(binding.Path, keyDelimiter), prefix+binding.Name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", prefix+binding.Name, err)
		}
	}

	for _, overrides := range runtimeOverrides {
		applyOverrides(v, "", overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Store.URL) == "" && strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = DefaultStorePath()
	}
	if c.RateLimitMargin < 0 || c.RateLimitMargin > 1 {
		return fmt.Errorf("invalid rate limit margin %v: must be within [0, 1]", c.RateLimitMargin)
	}
	if c.Registry.Timeout < 0 {
		return errors.New("registry timeout must not be negative")
	}
	if c.RateLimits == nil {
		c.RateLimits = map[string]int{}
	}
	return nil
}

// applyOverrides sets every leaf of overrides on v. Set values take
// precedence over environment variables and files.
func applyOverrides(v *viper.Viper, prefix string, overrides map[string]any) {
	for key, value := range overrides {
		path := key
		if prefix != "" {
			path = prefix + keyDelimiter + key
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			applyOverrides(v, path, nested)
			continue
		}
		v.Set(path, value)
	}
}

// userConfigFile returns the config file to merge over the defaults, or ""
// when there is none.
func userConfigFile() string {
	configMu.RLock()
	explicit := explicitFile
	configMu.RUnlock()
	if explicit != "" {
		return explicit
	}

	candidates := []string{DefaultConfigPath()}
	candidates = append(candidates, gfconfig.GetAppConfigPaths(appid.ConfigName(appIdentity))...)
	for _, path := range candidates {
		if strings.TrimSpace(path) == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			return path
		}
		inDir := filepath.Join(path, "config.yaml")
		if info, err := os.Stat(inDir); err == nil && !info.IsDir() {
			return inDir
		}
	}
	return ""
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.ConfigName(appIdentity))
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.ConfigName(appIdentity))
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	binaryName := appid.BinaryName(appIdentity)
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// EnvVarNames lists the environment variables Load reads.
func EnvVarNames() []string {
	prefix := appid.EnvPrefix(appIdentity)
	names := make([]string, 0, len(envBindings))
	for _, binding := range envBindings {
		names = append(names, prefix+binding.Name)
	}
	return names
}
