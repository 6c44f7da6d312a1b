package ratelimiter

import (
	"golang.org/x/time/rate"
)

// RateLimiter provides request rate limiting using the token bucket
// algorithm, wrapping golang.org/x/time/rate.
//
// Tokens are added to the bucket at the sustained rate; each request
// consumes one. The burst capacity allows temporary spikes above the
// sustained rate. All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter with the specified sustained rate and burst
// capacity.
//
// Special case: requestsPerSecond <= 0 disables limiting (every request is
// allowed).
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		// Effectively unlimited. rate.Inf would be ideal but has edge cases,
		// so use a large value.
		requestsPerSecond = 1_000_000_000
		burst = 1_000_000_000
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow reports whether a request may proceed, consuming a token when it
// may. It never blocks; use it to reject over-limit requests immediately.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
