package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles operations with a token bucket. Both the server and
// the load generator take the blocking Wait path, pacing work past the
// configured rate instead of dropping it; Allow is the non-blocking variant
// for callers that would rather shed.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing opsPerSecond sustained with the given
// burst capacity. opsPerSecond = 0 disables limiting; a zero burst is raised
// to the sustained rate so the bucket can actually fill.
func New(opsPerSecond, burst uint) *RateLimiter {
	if opsPerSecond == 0 {
		// Effectively unlimited. rate.Inf has edge cases around Wait,
		// so use a large finite value instead.
		opsPerSecond = 1_000_000_000
		burst = opsPerSecond
	}
	if burst == 0 {
		burst = opsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), int(burst)),
	}
}

// Allow reports whether one operation may proceed right now, consuming a
// token when it may. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current bucket fill, for monitoring.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
