package main

import (
	"context"
	"testing"
	"time"

	"github.com/hyunsoolee/newsona/config"
	"github.com/hyunsoolee/newsona/internal/processor"
)

func TestRunSchedule_ReturnsOnCancel(t *testing.T) {
	proc := processor.New(processor.Options{})
	cfg := &config.Config{CollectInterval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runSchedule(ctx, proc, nil, cfg)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runSchedule did not return after cancellation; shutdown would not be able to join it")
	}
}
