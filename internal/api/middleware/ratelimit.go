// Package middleware provides HTTP middleware components for the core API.
package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/integration-os/core/internal/ioserr"
)

const burstCapacityMultiplier = 2

type (
	// RateLimiter provides coarse, front-door rate limiting for incoming
	// requests, independent of the credential gate's per-access-key
	// throughput accounting (spec.md §4.4) which only applies once a
	// request has cleared this layer and reached the ingress handler.
	RateLimiter interface {
		// Allow reports whether a request should proceed.
		Allow() bool
	}

	// InMemoryRateLimiter implements RateLimiter using a single global
	// token bucket. Suitable for single-node deployments; a distributed
	// backend is a drop-in replacement since it satisfies the same
	// interface.
	InMemoryRateLimiter struct {
		global *rate.Limiter
	}
)

// NewInMemoryRateLimiter creates a global token-bucket limiter at rps
// requests per second with burst capacity computed as 2 × rps unless
// overridden in cfg.
func NewInMemoryRateLimiter(cfg *Config) *InMemoryRateLimiter {
	burst := cfg.Burst
	if burst == 0 {
		burst = cfg.RPS * burstCapacityMultiplier
	}

	return &InMemoryRateLimiter{global: rate.NewLimiter(rate.Limit(cfg.RPS), burst)}
}

// Allow reports whether the global limit permits one more request.
func (rl *InMemoryRateLimiter) Allow() bool {
	return rl.global.Allow()
}

// RateLimit returns a middleware that rejects requests exceeding limiter's
// global rate with 429, before any expensive work (credential lookup,
// event persistence) runs.
func RateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				ioserr.WriteHTTP(w, ioserr.New(ioserr.TooManyRequests, "rate limit exceeded"))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
