package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces counters in a shared Redis.
const DefaultKeyPrefix = "attendancehook:ratelimit:"

// RedisLimiter counts requests per key in fixed windows stored in Redis, so
// every worker process draws from the same budget.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	budget Budget
	now    func() time.Time
}

// NewRedisLimiter wraps an existing client.
func NewRedisLimiter(client *redis.Client, budget Budget) *RedisLimiter {
	return &RedisLimiter{
		Client: client,
		Prefix: DefaultKeyPrefix,
		budget: budget,
		now:    time.Now,
	}
}

// NewRedisLimiterFromURL connects with short timeouts, as a limiter must not
// hold up requests for long.
func NewRedisLimiterFromURL(rawURL string, budget Budget) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second

	return NewRedisLimiter(redis.NewClient(opts), budget), nil
}

// windowKey returns the counter key for key in the window containing now and
// the time that window ends.
func (rl *RedisLimiter) windowKey(key string, now time.Time) (string, time.Time) {
	start := now.Truncate(rl.budget.Window)
	return rl.Prefix + key + ":" + strconv.FormatInt(start.Unix(), 10), start.Add(rl.budget.Window)
}

// Allow increments key's counter for the current window.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := rl.now()
	counterKey, resetAt := rl.windowKey(key, now)

	pipe := rl.Client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	// Expire a little after the window closes so clock skew between
	// workers cannot resurrect a counter.
	pipe.ExpireAt(ctx, counterKey, resetAt.Add(time.Second))
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	decision := Decision{
		Allowed:   count <= rl.budget.Requests,
		Limit:     rl.budget.Requests,
		Remaining: rl.budget.Requests - count,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if !decision.Allowed {
		decision.RetryAfter = resetAt.Sub(now)
	}
	return decision, nil
}

// Ping checks connectivity.
func (rl *RedisLimiter) Ping(ctx context.Context) error {
	return rl.Client.Ping(ctx).Err()
}

// Close releases the client.
func (rl *RedisLimiter) Close() error {
	return rl.Client.Close()
}
