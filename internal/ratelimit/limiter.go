// Package ratelimit caps the global request rate shared by every task worker
// so a batch of check-ins does not hammer one site.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter is safe for concurrent use. A nil *RateLimiter never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps requests per second with a burst of at least one.
// It returns nil, meaning unlimited, when rps <= 0.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	burst := int(math.Ceil(rps))
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until one request may proceed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Limit returns the configured requests per second, 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}
