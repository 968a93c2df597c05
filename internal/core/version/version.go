// Package version classifies the difference between two npm versions and
// orders a package's published versions by semantic-version precedence.
package version

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/npmwatch/npmwatch/internal/core"
)

// maxLength mirrors the npm registry's version length ceiling.
const maxLength = 256

// Parse parses a version the way npm's strict parser does: surrounding
// whitespace and a single leading "v" are tolerated, everything else must be
// a complete MAJOR.MINOR.PATCH[-pre][+build] version.
func Parse(value string) (*semver.Version, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) > maxLength {
		return nil, semver.ErrInvalidSemVer
	}
	trimmed = strings.TrimPrefix(trimmed, "v")
	return semver.StrictNewVersion(trimmed)
}

// Valid reports whether value is a syntactically valid version.
func Valid(value string) bool {
	_, err := Parse(value)
	return err == nil
}

// Classify decides whether a package changed between knownVersion and
// latestVersion and, when it did, what kind of change it was.
//
// An empty known version never counts as a change. When either version is not
// valid semver but the two differ textually the change is ChangeUnknown. When
// both versions are valid but of equal precedence (they differ only in build
// metadata) the change is reported with a nil type.
func Classify(latestVersion, knownVersion string) (bool, *core.ChangeType) {
	if knownVersion == "" {
		return false, nil
	}
	if latestVersion == knownVersion {
		return false, nil
	}
	if !Valid(knownVersion) || !Valid(latestVersion) {
		unknown := core.ChangeUnknown
		return true, &unknown
	}
	return true, Diff(knownVersion, latestVersion)
}

// Diff returns the category of difference between two versions, or nil when
// either is invalid or both have the same precedence.
func Diff(from, to string) *core.ChangeType {
	v1, err := Parse(from)
	if err != nil {
		return nil
	}
	v2, err := Parse(to)
	if err != nil {
		return nil
	}

	comparison := v1.Compare(v2)
	if comparison == 0 {
		return nil
	}

	high, low := v2, v1
	if comparison > 0 {
		high, low = v1, v2
	}
	highHasPre := high.Prerelease() != ""
	lowHasPre := low.Prerelease() != ""

	// Leaving a prerelease for its release line is classified by the
	// lowest non-zero component of the prerelease's main version.
	if lowHasPre && !highHasPre {
		if low.Patch() == 0 && low.Minor() == 0 {
			return changeType(core.ChangeMajor)
		}
		if compareMain(low, high) == 0 {
			if low.Minor() != 0 && low.Patch() == 0 {
				return changeType(core.ChangeMinor)
			}
			return changeType(core.ChangePatch)
		}
	}

	pre := highHasPre
	switch {
	case v1.Major() != v2.Major():
		return prefixed(core.ChangeMajor, core.ChangePremajor, pre)
	case v1.Minor() != v2.Minor():
		return prefixed(core.ChangeMinor, core.ChangePreminor, pre)
	case v1.Patch() != v2.Patch():
		return prefixed(core.ChangePatch, core.ChangePrepatch, pre)
	default:
		return changeType(core.ChangePrerelease)
	}
}

// Sort orders version strings ascending by precedence. Strings that do not
// parse are dropped; versions of equal precedence are ordered by their text so
// the result does not depend on input order.
func Sort(versions []string) []string {
	type entry struct {
		raw    string
		parsed *semver.Version
	}

	entries := make([]entry, 0, len(versions))
	for _, raw := range versions {
		parsed, err := Parse(raw)
		if err != nil {
			continue
		}
		entries = append(entries, entry{raw: raw, parsed: parsed})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].parsed.Compare(entries[j].parsed); c != 0 {
			return c < 0
		}
		return entries[i].raw < entries[j].raw
	})

	sorted := make([]string, len(entries))
	for i, e := range entries {
		sorted[i] = e.raw
	}
	return sorted
}

// Previous returns the version published immediately before latest, or nil
// when latest is the first version or is not among versions.
func Previous(versions []string, latest string) *string {
	sorted := Sort(versions)
	for i, v := range sorted {
		if v != latest {
			continue
		}
		if i == 0 {
			return nil
		}
		previous := sorted[i-1]
		return &previous
	}
	return nil
}

func compareMain(a, b *semver.Version) int {
	for _, pair := range [][2]uint64{
		{a.Major(), b.Major()},
		{a.Minor(), b.Minor()},
		{a.Patch(), b.Patch()},
	} {
		switch {
		case pair[0] < pair[1]:
			return -1
		case pair[0] > pair[1]:
			return 1
		}
	}
	return 0
}

func prefixed(release, prerelease core.ChangeType, pre bool) *core.ChangeType {
	if pre {
		return changeType(prerelease)
	}
	return changeType(release)
}

func changeType(value core.ChangeType) *core.ChangeType {
	return &value
}
