package ratelimiter

import (
	"sync"
	"time"

	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"golang.org/x/time/rate"
)

// Key identifies the caller being limited, usually a connection id.
type Key string

// RateLimiter keeps one token bucket per key. A key may burst up to Points
// events, and the bucket refills at Points per Duration seconds.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[Key]*rate.Limiter
	limiting settings.RateLimiting
	now      func() time.Time
}

type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "rate limit exceeded"
}

func NewRateLimiter(limiting settings.RateLimiting) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[Key]*rate.Limiter),
		limiting: limiting,
		now:      time.Now,
	}
}

func (r *RateLimiter) disabled() bool {
	return r.limiting.LoadTest || r.limiting.Points <= 0 || r.limiting.Duration <= 0
}

func (r *RateLimiter) limiterFor(key Key) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[key]
	if !ok {
		window := time.Duration(r.limiting.Duration) * time.Second
		limiter = rate.NewLimiter(rate.Every(window/time.Duration(r.limiting.Points)), r.limiting.Points)
		r.limiters[key] = limiter
	}
	return limiter
}

// Check takes a token for key and fails when the bucket is empty. Rejected
// events do not consume a token.
func (r *RateLimiter) Check(key Key) error {
	if r.disabled() {
		return nil
	}
	if !r.limiterFor(key).AllowN(r.now(), 1) {
		return ErrRateLimitExceeded{}
	}
	return nil
}

// Forget drops the bucket of key, used when a connection goes away.
func (r *RateLimiter) Forget(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, key)
}

func (r *RateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
