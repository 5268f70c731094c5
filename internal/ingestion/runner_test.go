package ingestion

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
	"onset-detect/internal/pipeline"
)

func TestRunnerStopsOnSourceExhaustion(t *testing.T) {
	ticks := []domain.Tick{
		{TS: 0, Symbol: "005930", Price: 100, Volume: 1},
		{TS: 1000, Symbol: "005930", Price: 101, Volume: 1},
	}
	sp, err := pipeline.NewSharded(context.Background(), 2, 8, pipeline.Options{Config: config.Default()})
	if err != nil {
		t.Fatalf("NewSharded: %v", err)
	}

	r := NewRunner(RunnerOptions{
		Source:        NewSliceSource(ticks),
		Sharded:       sp,
		StatsInterval: time.Hour,
	})

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Run() = %v, want io.EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Runner.Run did not stop after source exhaustion")
	}

	// Run returns as soon as the source is exhausted, which may race ahead
	// of the shard workers finishing every in-flight tick, so only an upper
	// bound is guaranteed here.
	stats := r.Stats()
	if stats.TicksProcessed > int64(len(ticks)) {
		t.Errorf("TicksProcessed = %d, want <= %d", stats.TicksProcessed, len(ticks))
	}
}

func TestRunnerStopsOnContextCancellation(t *testing.T) {
	sp, err := pipeline.NewSharded(context.Background(), 1, 8, pipeline.Options{Config: config.Default()})
	if err != nil {
		t.Fatalf("NewSharded: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	blocking := NewSliceSource(nil) // drains immediately to io.EOF; cancellation still races the read loop
	r := NewRunner(RunnerOptions{Source: blocking, Sharded: sp, StatsInterval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Runner.Run did not stop after context cancellation")
	}
}
