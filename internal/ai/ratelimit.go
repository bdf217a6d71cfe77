package ai

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most maxCalls within any trailing window. A call
// that would exceed the window blocks until the oldest recorded call ages
// out, then re-checks.
type SlidingWindow struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time
}

func NewSlidingWindow(maxCalls int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		maxCalls: maxCalls,
		window:   window,
	}
}

// Acquire blocks until a slot is available or ctx is cancelled.
func (l *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()

		live := l.calls[:0]
		for _, t := range l.calls {
			if now.Sub(t) < l.window {
				live = append(live, t)
			}
		}
		l.calls = live

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
