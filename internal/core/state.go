package core

import "time"

// WatchEntry is the last observed state of a tracked package.
type WatchEntry struct {
	PackageName       string      `json:"packageName"`
	LatestVersion     string      `json:"latestVersion"`
	LatestPublishedAt *string     `json:"latestPublishedAt"`
	PreviousVersion   *string     `json:"previousVersion"`
	ChangeType        *ChangeType `json:"changeType"`
	CheckedAt         time.Time   `json:"checkedAt"`
}

// RateLimitState is the persisted request budget of one registry endpoint.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
	BackoffUntil *time.Time
	Last429At    *time.Time
}

// BackoffRemaining returns how long requests stay blocked after a 429, or
// zero once the backoff has passed.
func (s *RateLimitState) BackoffRemaining(now time.Time) time.Duration {
	if s == nil || s.BackoffUntil == nil || !now.Before(*s.BackoffUntil) {
		return 0
	}
	return s.BackoffUntil.Sub(now)
}
