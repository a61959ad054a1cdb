package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxIdleEntries is the map size above which refilled limiters are dropped.
const maxIdleEntries = 10_000

// MemoryLimiter keeps one token bucket per key. Buckets hold the full budget
// and refill at budget/window, so the window rolls continuously.
type MemoryLimiter struct {
	limiters  map[string]*rate.Limiter
	mu        sync.Mutex
	rateLimit rate.Limit
	burstSize int
	now       func() time.Time
}

// NewMemoryLimiter creates a limiter for budget.
func NewMemoryLimiter(budget Budget) *MemoryLimiter {
	return &MemoryLimiter{
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Limit(float64(budget.Requests) / budget.Window.Seconds()),
		burstSize: budget.Requests,
		now:       time.Now,
	}
}

// GetLimiter returns the bucket for key, creating it on first use.
func (ml *MemoryLimiter) GetLimiter(key string) *rate.Limiter {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	limiter, exists := ml.limiters[key]
	if !exists {
		if len(ml.limiters) >= maxIdleEntries {
			ml.pruneLocked()
		}
		limiter = rate.NewLimiter(ml.rateLimit, ml.burstSize)
		ml.limiters[key] = limiter
	}

	return limiter
}

// Allow takes one token from key's bucket.
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	limiter := ml.GetLimiter(key)
	now := ml.now()

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, Limit: ml.burstSize}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{
			Allowed:    false,
			Limit:      ml.burstSize,
			Remaining:  0,
			RetryAfter: delay,
		}, nil
	}

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: ml.burstSize, Remaining: remaining}, nil
}

// pruneLocked drops buckets that have refilled completely; they carry no
// state a fresh bucket would not.
func (ml *MemoryLimiter) pruneLocked() {
	now := ml.now()
	for key, limiter := range ml.limiters {
		if limiter.TokensAt(now) >= float64(ml.burstSize) {
			delete(ml.limiters, key)
		}
	}
}
