package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is a single-process Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		windows: make(map[string]window),
		now:     now,
	}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(length)}
	}
	w.count++
	c.windows[key] = w
	return w.count, w.resetAt.Sub(now), nil
}
