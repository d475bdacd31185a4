package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Counter increments a key inside a fixed window and reports the count and
// the time left before the window resets.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window limiter keyed by caller, typically the client IP.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
}

func New(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   limit,
		window:  window,
		prefix:  "ratelimit:",
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.counter.Increment(ctx, l.prefix+key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit increment: %w", err)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
		if decision.RetryAfter <= 0 {
			decision.RetryAfter = l.window
		}
	}
	return decision, nil
}
