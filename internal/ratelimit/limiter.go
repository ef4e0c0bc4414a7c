package ratelimit

import (
	"time"

	"golang.org/x/time/rate"

	"repairshop-api/internal/clock"
)

// Limiter combines the per-IP failure backoff with the shared admission
// gate. The gate is deliberately global and unkeyed: it bounds aggregate
// login load across all clients, independent of backoff semantics.
type Limiter struct {
	tracker *FailureTracker
	gate    *rate.Limiter
	clock   clock.Clock
}

// NewLimiter creates a Limiter admitting at most attempts per window
// globally, with per-IP failure tracking across the given shard count.
func NewLimiter(attempts int, window time.Duration, shards int, clk clock.Clock) *Limiter {
	if attempts < 1 {
		attempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		tracker: NewFailureTracker(shards, clk),
		gate:    rate.NewLimiter(rate.Limit(float64(attempts)/window.Seconds()), attempts),
		clock:   clk,
	}
}

// Check evaluates both admission checks for one login attempt from ip.
// Backoff runs first: it is cheaper and more specific. If either check
// fails, limited is true and retryAfterSeconds carries the hint the
// boundary layer must surface to the client. A passing call consumes one
// token from the shared gate.
func (l *Limiter) Check(ip string) (retryAfterSeconds int, limited bool) {
	if remaining, inBackoff := l.tracker.Backoff(ip); inBackoff {
		return remaining, true
	}

	now := l.clock.Now()
	reservation := l.gate.ReserveN(now, 1)
	if !reservation.OK() {
		return secondsCeil(time.Minute), true
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return secondsCeil(delay), true
	}

	return 0, false
}

// RecordOutcome records the result of a completed authentication attempt.
// It must be the final step of the attempt, never run on a cancelled
// request path.
func (l *Limiter) RecordOutcome(ip string, success bool) {
	if success {
		l.tracker.RecordSuccess(ip)
	} else {
		l.tracker.RecordFailure(ip)
	}
}

// Tracker exposes the failure registry for introspection.
func (l *Limiter) Tracker() *FailureTracker {
	return l.tracker
}
