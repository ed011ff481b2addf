package scraper

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a global minimum interval between outbound requests. The
// upstream registry penalizes aggregate request rate, so this is one shared
// reservation queue across all keys, not a per-key limiter.
//
// Acquire reserves the earliest free slot under a single mutex, then waits for
// it outside the lock, so concurrent callers are admitted in roughly the order
// their reservations were taken.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewThrottle creates a throttle with the given minimum inter-request interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Acquire blocks until the caller's reserved slot arrives or ctx is done.
// The slot is consumed even if the caller gives up; releasing it would let a
// later caller fire early and break the aggregate spacing guarantee.
func (t *Throttle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	now := time.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
