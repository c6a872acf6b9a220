package client

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound API calls. A nil limiter lets everything through.
type RateLimiter struct {
	mu  sync.RWMutex
	lim *rate.Limiter
}

// NewRateLimiter allows perSecond calls with the given burst.
// perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	r := &RateLimiter{}
	r.SetLimit(perSecond, burst)
	return r
}

// SetLimit changes the limit in place.
func (r *RateLimiter) SetLimit(perSecond float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if perSecond <= 0 {
		r.lim = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	if r.lim == nil {
		r.lim = rate.NewLimiter(rate.Limit(perSecond), burst)
		return
	}
	r.lim.SetLimit(rate.Limit(perSecond))
	r.lim.SetBurst(burst)
}

// Wait blocks until a call may proceed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	lim := r.lim
	r.mu.RUnlock()
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
