// Package appid resolves the npmwatch application identity.
package appid

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/npmwatch/npmwatch/internal/assets/appidentity"
)

// fallbackName is used for paths and prefixes when the identity leaves a
// field empty.
const fallbackName = "npmwatch"

func init() {
	// An identity file on disk or FULMEN_APP_IDENTITY_PATH still wins; the
	// embedded copy only serves standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the process-wide identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity's environment prefix, always ending in "_".
func EnvPrefix(identity *appidentity.Identity) string {
	prefix := "NPMWATCH_"
	if identity != nil && strings.TrimSpace(identity.EnvPrefix) != "" {
		prefix = strings.TrimSpace(identity.EnvPrefix)
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// ConfigName returns the directory name used for config and data paths.
func ConfigName(identity *appidentity.Identity) string {
	if identity == nil {
		return fallbackName
	}
	if name := strings.TrimSpace(identity.ConfigName); name != "" {
		return name
	}
	if name := strings.TrimSpace(identity.BinaryName); name != "" {
		return name
	}
	return fallbackName
}

// BinaryName returns the executable name.
func BinaryName(identity *appidentity.Identity) string {
	if identity != nil && strings.TrimSpace(identity.BinaryName) != "" {
		return strings.TrimSpace(identity.BinaryName)
	}
	return fallbackName
}
