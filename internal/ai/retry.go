package ai

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds one logical provider call: up to Attempts tries with
// exponential backoff, each attempt capped by Timeout so a hung provider
// cannot block the executor past its own deadline.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
}

// DoWithRetry runs fn under the policy. Transient errors consume retry
// budget with `BaseDelay * 2^attempt * jitter` sleeps (jitter uniform in
// [0.5, 1.5]); terminal and model-unavailable errors short-circuit and
// propagate at once.
func DoWithRetry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if policy.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}
		result, err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		if Classify(err) != ClassTransient || attempt == attempts-1 {
			break
		}

		jitter := 0.5 + rand.Float64()
		delay := time.Duration(float64(policy.BaseDelay) * math.Pow(2, float64(attempt)) * jitter)

		slog.Warn("[Retry] transient error, backing off",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", clip(err.Error(), 100)))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
