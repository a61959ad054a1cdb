// Package ratelimit enforces a fixed request budget per origin over a time
// window. The in-process limiter refills continuously; the Redis limiter
// shares fixed-window counters between worker processes.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Budget is the number of requests allowed per window.
type Budget struct {
	Requests int
	Window   time.Duration
}

func (b Budget) String() string {
	unit := "hour"
	switch b.Window {
	case time.Second:
		unit = "second"
	case time.Minute:
		unit = "minute"
	case 24 * time.Hour:
		unit = "day"
	case time.Hour:
	default:
		return fmt.Sprintf("%d per %s", b.Requests, b.Window)
	}
	return fmt.Sprintf("%d per %s", b.Requests, unit)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request from key fits in the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// ParseBudget accepts "100 per hour", "100/hour", "100 per 1 hour" or a bare
// integer, which means per hour.
func ParseBudget(s string) (Budget, error) {
	expr := strings.ToLower(strings.TrimSpace(s))
	if expr == "" {
		return Budget{}, fmt.Errorf("empty rate limit")
	}

	var countPart, unitPart string
	switch {
	case strings.Contains(expr, "/"):
		countPart, unitPart, _ = strings.Cut(expr, "/")
	case strings.Contains(expr, " per "):
		countPart, unitPart, _ = strings.Cut(expr, " per ")
	default:
		countPart, unitPart = expr, "hour"
	}

	count, err := strconv.Atoi(strings.TrimSpace(countPart))
	if err != nil || count <= 0 {
		return Budget{}, fmt.Errorf("invalid rate limit %q: request count must be a positive integer", s)
	}

	multiplier := 1
	fields := strings.Fields(unitPart)
	if len(fields) == 2 {
		multiplier, err = strconv.Atoi(fields[0])
		if err != nil || multiplier <= 0 {
			return Budget{}, fmt.Errorf("invalid rate limit %q: bad window multiplier", s)
		}
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return Budget{}, fmt.Errorf("invalid rate limit %q", s)
	}

	var window time.Duration
	switch strings.TrimSuffix(fields[0], "s") {
	case "second", "sec":
		window = time.Second
	case "minute", "min":
		window = time.Minute
	case "hour", "hr":
		window = time.Hour
	case "day":
		window = 24 * time.Hour
	default:
		return Budget{}, fmt.Errorf("invalid rate limit %q: unknown unit %q", s, fields[0])
	}

	return Budget{Requests: count, Window: window * time.Duration(multiplier)}, nil
}

// New returns the limiter for storageURL. An empty URL or memory:// selects the
// in-process limiter; redis:// and rediss:// select the shared one.
func New(storageURL string, budget Budget) (Limiter, error) {
	switch {
	case storageURL == "", strings.HasPrefix(storageURL, "memory://"):
		return NewMemoryLimiter(budget), nil
	case strings.HasPrefix(storageURL, "redis://"), strings.HasPrefix(storageURL, "rediss://"):
		return NewRedisLimiterFromURL(storageURL, budget)
	default:
		return nil, fmt.Errorf("unsupported rate limit storage %q", storageURL)
	}
}
