package metrics

import (
	"errors"
	"time"

	"github.com/npmwatch/npmwatch/internal/core"
	"github.com/npmwatch/npmwatch/internal/core/registry"
	"github.com/npmwatch/npmwatch/internal/observability"
)

// Watch metrics following Prometheus conventions
const (
	LookupsTotal       = "watch_lookups_total"
	LookupDuration     = "watch_lookup_duration_ms"
	RunsTotal          = "watch_runs_total"
	RateLimitedTotal   = "registry_rate_limited_total"
	HealthCheckTotal   = "app_health_check_total"
	HealthCheckLatency = "app_health_check_duration_ms"
	ServerStartTime    = "app_server_start_time_seconds"
	ServerUptime       = "app_server_uptime_seconds"
)

// Lookup outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// LookupOutcome labels a finished lookup.
func LookupOutcome(report *core.ChangeReport, err error) (outcome string, changeType string) {
	switch {
	case err != nil || report == nil:
		return OutcomeError, "none"
	case !report.HasChanged:
		return OutcomeUnchanged, "none"
	case report.ChangeType == nil:
		return OutcomeChanged, "none"
	default:
		return OutcomeChanged, string(*report.ChangeType)
	}
}

// RecordLookup records one package lookup. Its signature matches
// watch.LookupFunc so it can be installed directly on a Node.
func RecordLookup(_ core.PackageQuery, report *core.ChangeReport, err error, elapsed time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	outcome, changeType := LookupOutcome(report, err)
	_ = observability.TelemetrySystem.Counter(
		LookupsTotal,
		1,
		map[string]string{
			"outcome":     outcome,
			"change_type": changeType,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		LookupDuration,
		elapsed,
		map[string]string{"outcome": outcome},
	)
	if errors.Is(err, registry.ErrRateLimited) {
		_ = observability.TelemetrySystem.Counter(RateLimitedTotal, 1, nil)
	}
}

// RecordRun records a completed watch run by host kind ("cli", "http").
func RecordRun(host string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RunsTotal,
			1,
			map[string]string{
				"host":   host,
				"status": status,
			},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckLatency,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}
