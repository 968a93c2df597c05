package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/core"
)

func TestValid(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"1.0.0", true},
		{"v1.0.0", true},
		{" 1.2.3 ", true},
		{"1.0.0-rc.1", true},
		{"1.0.0+build.5", true},
		{"1.0", false},
		{"01.0.0", false},
		{"vv1.0.0", false},
		{"not-a-version", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Valid(tc.value), "Valid(%q)", tc.value)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		latest      string
		known       string
		wantChanged bool
		wantType    *core.ChangeType
	}{
		{name: "EmptyKnown", latest: "1.0.0", known: "", wantChanged: false},
		{name: "EqualValid", latest: "1.2.3", known: "1.2.3", wantChanged: false},
		{name: "Major", latest: "2.0.0", known: "1.0.0", wantChanged: true, wantType: ptr(core.ChangeMajor)},
		{name: "Minor", latest: "1.3.0", known: "1.2.9", wantChanged: true, wantType: ptr(core.ChangeMinor)},
		{name: "Patch", latest: "1.2.1", known: "1.2.0", wantChanged: true, wantType: ptr(core.ChangePatch)},
		{name: "Downgrade", latest: "1.0.0", known: "2.0.0", wantChanged: true, wantType: ptr(core.ChangeMajor)},
		{name: "InvalidKnown", latest: "1.0.0", known: "not-a-version", wantChanged: true, wantType: ptr(core.ChangeUnknown)},
		{name: "InvalidKnownEqual", latest: "not-a-version", known: "not-a-version", wantChanged: false},
		{name: "InvalidLatest", latest: "garbage", known: "1.0.0", wantChanged: true, wantType: ptr(core.ChangeUnknown)},
		{name: "RangeIsNotAVersion", latest: "1.0.0", known: "^1.0.0", wantChanged: true, wantType: ptr(core.ChangeUnknown)},
		{name: "Prerelease", latest: "1.0.0-beta.2", known: "1.0.0-beta.1", wantChanged: true, wantType: ptr(core.ChangePrerelease)},
		{name: "Premajor", latest: "2.0.0-rc.1", known: "1.4.0", wantChanged: true, wantType: ptr(core.ChangePremajor)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			changed, changeType := Classify(tc.latest, tc.known)
			require.Equal(t, tc.wantChanged, changed)
			if tc.wantType == nil {
				require.Nil(t, changeType)
				return
			}
			require.NotNil(t, changeType)
			require.Equal(t, *tc.wantType, *changeType)
		})
	}
}

// Versions that differ only in build metadata have equal precedence, so the
// package is reported as changed without a change type.
func TestClassifyBuildMetadataOnly(t *testing.T) {
	changed, changeType := Classify("1.0.0+build.2", "1.0.0+build.1")
	require.True(t, changed)
	require.Nil(t, changeType)

	changed, changeType = Classify("1.0.0", "v1.0.0")
	require.True(t, changed)
	require.Nil(t, changeType)
}

func TestClassifyChangeTypeOnlyWhenChanged(t *testing.T) {
	pairs := [][2]string{
		{"1.0.0", ""},
		{"1.0.0", "1.0.0"},
		{"garbage", "garbage"},
		{"2.0.0", "1.0.0"},
		{"2.0.0", "junk"},
	}
	for _, pair := range pairs {
		changed, changeType := Classify(pair[0], pair[1])
		if !changed {
			assert.Nil(t, changeType, "latest=%q known=%q", pair[0], pair[1])
		}
		assert.Equal(t, pair[1] != "" && pair[1] != pair[0], changed, "latest=%q known=%q", pair[0], pair[1])
	}
}

func TestDiff(t *testing.T) {
	cases := []struct {
		from, to string
		want     *core.ChangeType
	}{
		{"1.0.0", "2.0.0", ptr(core.ChangeMajor)},
		{"1.0.0", "1.1.0", ptr(core.ChangeMinor)},
		{"1.0.0", "1.0.1", ptr(core.ChangePatch)},
		{"1.0.0", "2.0.0-alpha", ptr(core.ChangePremajor)},
		{"1.0.0", "1.1.0-alpha", ptr(core.ChangePreminor)},
		{"1.0.0", "1.0.1-alpha", ptr(core.ChangePrepatch)},
		{"1.0.0-alpha.1", "1.0.0-alpha.2", ptr(core.ChangePrerelease)},
		{"1.0.0-1", "1.0.0", ptr(core.ChangeMajor)},
		{"1.0.0-1", "1.1.1", ptr(core.ChangeMajor)},
		{"1.1.0-1", "1.1.0", ptr(core.ChangeMinor)},
		{"1.1.1-1", "1.1.1", ptr(core.ChangePatch)},
		{"1.1.1-1", "1.2.0", ptr(core.ChangeMinor)},
		{"1.0.0", "1.0.0", nil},
		{"1.0.0+a", "1.0.0+b", nil},
		{"bad", "1.0.0", nil},
	}

	for _, tc := range cases {
		got := Diff(tc.from, tc.to)
		if tc.want == nil {
			assert.Nil(t, got, "Diff(%q, %q)", tc.from, tc.to)
			continue
		}
		if assert.NotNil(t, got, "Diff(%q, %q)", tc.from, tc.to) {
			assert.Equal(t, *tc.want, *got, "Diff(%q, %q)", tc.from, tc.to)
		}
	}
}

func TestSortUsesPrecedence(t *testing.T) {
	sorted := Sort([]string{"1.10.0", "1.2.0", "1.0.0-rc.1", "1.0.0", "not-semver", "1.9.0"})
	require.Equal(t, []string{"1.0.0-rc.1", "1.0.0", "1.2.0", "1.9.0", "1.10.0"}, sorted)
}

func TestPrevious(t *testing.T) {
	t.Run("PrecedingVersion", func(t *testing.T) {
		previous := Previous([]string{"2.0.0", "1.0.0", "1.1.0"}, "2.0.0")
		require.NotNil(t, previous)
		require.Equal(t, "1.1.0", *previous)
	})

	t.Run("LatestIsFirst", func(t *testing.T) {
		require.Nil(t, Previous([]string{"1.0.0"}, "1.0.0"))
		require.Nil(t, Previous([]string{"1.0.0", "2.0.0-beta"}, "1.0.0"))
	})

	t.Run("LatestMissing", func(t *testing.T) {
		require.Nil(t, Previous([]string{"1.0.0", "1.1.0"}, "3.0.0"))
	})

	t.Run("LatestNotNewest", func(t *testing.T) {
		previous := Previous([]string{"1.0.0", "1.1.0", "2.0.0-beta.1"}, "1.1.0")
		require.NotNil(t, previous)
		require.Equal(t, "1.0.0", *previous)
	})
}

func ptr(value core.ChangeType) *core.ChangeType {
	return &value
}
