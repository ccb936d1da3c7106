package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-key sliding window counter: at most limit events per
// window, with older events aging out as the window slides.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time

	now func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records one event for key and reports whether it fits the window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	q := l.hits[key]
	idx := 0
	for idx < len(q) && !q[idx].After(cutoff) {
		idx++
	}
	q = q[idx:]

	if len(q) >= l.limit {
		l.hits[key] = q
		return false
	}

	l.hits[key] = append(q, now)
	return true
}
