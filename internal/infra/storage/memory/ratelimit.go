package memory

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter allows at most limit calls per subject within window.
// State lives in process memory, so each replica counts on its own.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindowLimiter{limit: limit, window: window, hits: make(map[string][]time.Time), now: time.Now}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.hits[subject][:0]
	for _, t := range l.hits[subject] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.limit {
		l.hits[subject] = kept
		return false, kept[0].Add(l.window).Sub(now), nil
	}
	l.hits[subject] = append(kept, now)
	return true, 0, nil
}
