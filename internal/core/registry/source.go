package registry

import (
	"strings"

	"github.com/npmwatch/npmwatch/internal/core"
)

// SourceURL resolves the page users should visit for a version: its homepage
// when declared, otherwise its repository URL stripped of the git+ scheme
// marker, any #fragment and a trailing .git. core.NotFound is returned when
// neither yields a value.
func SourceURL(manifest *core.VersionManifest) string {
	if manifest == nil {
		return core.NotFound
	}

	var resolved string
	switch {
	case strings.TrimSpace(manifest.Homepage) != "":
		resolved = cutFragment(strings.TrimSpace(manifest.Homepage))
	case manifest.Repository != nil && strings.TrimSpace(manifest.Repository.URL) != "":
		resolved = normalizeRepositoryURL(manifest.Repository.URL)
	}

	if resolved == "" {
		return core.NotFound
	}
	return resolved
}

func normalizeRepositoryURL(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "git+")
	value = cutFragment(value)
	value = strings.TrimSuffix(value, ".git")
	return value
}

func cutFragment(value string) string {
	before, _, _ := strings.Cut(value, "#")
	return before
}
