// Package ratelimit provides a keyed token-bucket limiter. Each catalog source
// is a key with its own declared budget of max requests per duration.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter manages per-key rate limiting.
// Keys without an explicit budget use the default limit.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter whose unconfigured keys allow rps requests per
// second with the given burst.
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Every converts a "max requests per duration" declaration into an even
// per-request interval. A non-positive max yields the whole duration.
func Every(maxRequests int, per time.Duration) time.Duration {
	if maxRequests <= 0 {
		return per
	}
	return per / time.Duration(maxRequests)
}

// Configure sets the budget for key to maxRequests per duration, spread
// evenly with a burst of one. Reconfiguring an existing key keeps its bucket.
func (krl *KeyedRateLimiter) Configure(key string, maxRequests int, per time.Duration) {
	limit := rate.Every(Every(maxRequests, per))

	krl.mu.Lock()
	defer krl.mu.Unlock()

	if limiter, ok := krl.limiters[key]; ok {
		limiter.SetLimit(limit)
		limiter.SetBurst(1)
		return
	}
	krl.limiters[key] = rate.NewLimiter(limit, 1)
}

// Allow reports whether a request for key may happen now, consuming a token if so.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// Forget drops the limiter for key, e.g. when a source is removed from the registry.
func (krl *KeyedRateLimiter) Forget(key string) {
	krl.mu.Lock()
	delete(krl.limiters, key)
	krl.mu.Unlock()
}

func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.RLock()
	limiter, exists := krl.limiters[key]
	krl.mu.RUnlock()

	if exists {
		return limiter
	}

	krl.mu.Lock()
	defer krl.mu.Unlock()

	if limiter, exists = krl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(krl.limit, krl.burst)
	krl.limiters[key] = limiter
	return limiter
}
