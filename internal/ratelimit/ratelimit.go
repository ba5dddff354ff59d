package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-user sliding window counter. Excess events are dropped,
// not queued, so backpressure stays visible to the sender.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	events  map[string][]time.Time
	nowFunc func() time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		events:  make(map[string][]time.Time),
		nowFunc: time.Now,
	}
}

// Allow purges timestamps older than the window, rejects if the remaining
// count already meets the cap, and otherwise records the event.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	cutoff := now.Add(-l.window)

	kept := l.events[userID][:0]
	for _, ts := range l.events[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.events[userID] = kept
		return false
	}

	l.events[userID] = append(kept, now)
	return true
}

// SetNow overrides the clock. Test hook.
func (l *Limiter) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nowFunc = now
}
