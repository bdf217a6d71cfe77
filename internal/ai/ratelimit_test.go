package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_AdmitsUpToLimit(t *testing.T) {
	l := NewSlidingWindow(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
}

func TestSlidingWindow_BlocksUntilOldestExpires(t *testing.T) {
	l := NewSlidingWindow(2, 50*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond,
		"third call must wait for the window to slide")
}

func TestSlidingWindow_CancelledContextUnblocks(t *testing.T) {
	l := NewSlidingWindow(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
