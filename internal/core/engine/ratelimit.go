// Package engine holds the request pacing shared by every registry lookup.
package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/npmwatch/npmwatch/internal/core"
)

// RateLimiter is a per-endpoint fixed-window limiter whose state lives in a
// RateLimitStore. A nil limiter or one without a store allows everything.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
	Margin float64
}

// RateLimit is the request budget of one window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimitStore persists limiter state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// DefaultLimits are the budgets for the registries npmwatch knows about.
var DefaultLimits = map[string]RateLimit{
	"registry.npmjs.org":     {RequestsPerWindow: 100, WindowDuration: time.Minute},
	"registry.yarnpkg.com":   {RequestsPerWindow: 100, WindowDuration: time.Minute},
	"registry.npmmirror.com": {RequestsPerWindow: 60, WindowDuration: time.Minute},
}

// fallbackLimit applies to self-hosted registries with no configured budget.
var fallbackLimit = RateLimit{RequestsPerWindow: 30, WindowDuration: time.Minute}

// Allow reports whether a request to endpoint may go out now and, if not,
// how long the caller would have to wait.
func (r *RateLimiter) Allow(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if r == nil || r.Store == nil {
		return true, 0, nil
	}

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return true, 0, err
	}

	now := r.now()
	if wait := state.BackoffRemaining(now); wait > 0 {
		return false, wait, nil
	}

	limit := r.Limit(endpoint)
	if r.rollWindow(state, limit) {
		return true, 0, nil
	}

	if state.RequestCount >= limit.RequestsPerWindow {
		return false, state.WindowStart.Add(limit.WindowDuration).Sub(now), nil
	}
	return true, 0, nil
}

// Record counts one request against endpoint's current window.
func (r *RateLimiter) Record(ctx context.Context, endpoint string) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return err
	}

	r.rollWindow(state, r.Limit(endpoint))
	state.RequestCount++
	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Record429 remembers a 429 from endpoint and blocks it for retryAfter.
func (r *RateLimiter) Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return err
	}

	now := r.now()
	state.Last429At = &now
	if retryAfter > 0 {
		until := now.Add(retryAfter)
		state.BackoffUntil = &until
	}
	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// ApplyOverrides replaces budgets with per-minute request counts keyed by
// endpoint host. Non-positive values are ignored.
func (r *RateLimiter) ApplyOverrides(overrides map[string]int) {
	if r == nil || len(overrides) == 0 {
		return
	}

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits)+len(overrides))
		for key, limit := range DefaultLimits {
			r.Limits[key] = limit
		}
	}

	for endpoint, value := range overrides {
		endpoint = strings.ToLower(strings.TrimSpace(endpoint))
		if endpoint == "" || value <= 0 {
			continue
		}
		r.Limits[endpoint] = RateLimit{RequestsPerWindow: value, WindowDuration: time.Minute}
	}
}

// ApplySafetyMargin scales every budget by margin, which must be in (0, 1].
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil || margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

// Limit returns the effective budget for endpoint after the safety margin.
func (r *RateLimiter) Limit(endpoint string) RateLimit {
	limits := DefaultLimits
	if r != nil && r.Limits != nil {
		limits = r.Limits
	}

	limit, ok := limits[strings.ToLower(endpoint)]
	if !ok {
		limit = fallbackLimit
	}
	return r.applyMargin(limit)
}

func (r *RateLimiter) load(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.RateLimitState{WindowStart: r.now()}
	}
	return state, nil
}

// rollWindow starts a fresh window when the current one has elapsed and
// reports whether it did.
func (r *RateLimiter) rollWindow(state *core.RateLimitState, limit RateLimit) bool {
	now := r.now()
	if state.WindowStart.IsZero() || now.After(state.WindowStart.Add(limit.WindowDuration)) {
		state.RequestCount = 0
		state.WindowStart = now
		return true
	}
	return false
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) applyMargin(limit RateLimit) RateLimit {
	if r == nil || r.Margin <= 0 || r.Margin > 1 {
		return limit
	}
	adjusted := int(math.Floor(float64(limit.RequestsPerWindow) * r.Margin))
	if adjusted < 1 {
		adjusted = 1
	}
	limit.RequestsPerWindow = adjusted
	return limit
}
