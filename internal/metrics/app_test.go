package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/npmwatch/npmwatch/internal/core"
)

func TestLookupOutcome(t *testing.T) {
	minor := core.ChangeMinor

	cases := []struct {
		name       string
		report     *core.ChangeReport
		err        error
		outcome    string
		changeType string
	}{
		{name: "Error", err: errors.New("boom"), outcome: OutcomeError, changeType: "none"},
		{name: "Unchanged", report: &core.ChangeReport{}, outcome: OutcomeUnchanged, changeType: "none"},
		{name: "Minor", report: &core.ChangeReport{HasChanged: true, ChangeType: &minor}, outcome: OutcomeChanged, changeType: "minor"},
		{name: "Untyped", report: &core.ChangeReport{HasChanged: true}, outcome: OutcomeChanged, changeType: "none"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, changeType := LookupOutcome(tc.report, tc.err)
			assert.Equal(t, tc.outcome, outcome)
			assert.Equal(t, tc.changeType, changeType)
		})
	}
}

func TestRecordWithoutTelemetry(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordLookup(core.PackageQuery{PackageName: "n8n"}, nil, errors.New("boom"), time.Millisecond)
		RecordRun("cli", true)
		RecordError("INTERNAL_ERROR", 500)
	})
}
