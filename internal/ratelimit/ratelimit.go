package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter interface {
	Wait(ctx context.Context) error
	SetInterval(d time.Duration)
}

// IntervalLimiter enforces a minimum spacing between calls using a single
// process-wide "time of last call" checkpoint. Callers sharing one instance
// serialize their external calls.
type IntervalLimiter struct {
	interval time.Duration
	lastCall time.Time
	mu       sync.Mutex
}

func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{interval: interval}
}

func (l *IntervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastCall)
	if elapsed < l.interval {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval - elapsed):
		}
	}

	l.lastCall = time.Now()
	return nil
}

func (l *IntervalLimiter) SetInterval(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = d
}
