// Package ratelimit enforces per-entity request budgets over rolling UTC
// calendar windows. Entities are credential IDs for authenticated traffic
// and client IPs for the pre-auth guard.
//
// Two Store implementations exist: an in-process sharded map (the default)
// and a Redis-backed store for multi-instance deployments. Both give the
// same semantics: a limit of N admits exactly N requests per window, the
// check-then-increment is atomic per (entity, granularity, window) tuple,
// and denied requests are never counted.
package ratelimit

import (
	"context"
	"time"
)

type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityDay    Granularity = "day"
)

// Result reports the outcome of a limit check. ResetAt is the boundary of
// the next window; RetryAfter is meaningful only when Allowed is false.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Store interface {
	// CheckAndConsume counts one request against the entity's current
	// window. If the window is already at limit the count is left untouched
	// and the result carries retry-after guidance.
	CheckAndConsume(ctx context.Context, entityID string, g Granularity, limit int) (Result, error)

	// Peek reads the entity's current window without consuming anything.
	Peek(ctx context.Context, entityID string, g Granularity, limit int) (Result, error)

	// Close releases background resources (the sweeper, connections).
	Close() error
}

// windowKey identifies the calendar window containing t, in UTC.
func windowKey(g Granularity, t time.Time) string {
	t = t.UTC()
	if g == GranularityDay {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02-15-04")
}

// windowReset returns the instant the window containing t rolls over: the
// top of the next minute, or the next UTC midnight.
func windowReset(g Granularity, t time.Time) time.Time {
	t = t.UTC()
	if g == GranularityDay {
		return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Minute).Add(time.Minute)
}

func retryAfter(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}
