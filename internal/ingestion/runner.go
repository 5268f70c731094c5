package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"onset-detect/internal/domain"
	"onset-detect/internal/pipeline"
	"onset-detect/internal/storage"
)

// Runner drives a long-lived Source (typically a WSTickSource) through a
// ShardedPipeline continuously, logging periodic stats, until ctx is
// cancelled or the source closes. Grounded on the RunnerOptions
// builder-with-defaults construction style of the original continuous
// ingestion Runner, generalized from slot-buffered Solana event ordering
// to the onset-detection domain's per-symbol tick stream (no slot
// buffering is needed here: OrderValidator's per-symbol check plays the
// role the slot-lag-window buffer used to play).
type Runner struct {
	source   Source
	sharded  *pipeline.ShardedPipeline
	sinks    []storage.EventSink
	order    *OrderValidator
	statsInterval time.Duration
	logger   *log.Logger

	stats ManagerStats
}

// RunnerOptions configures Runner construction.
type RunnerOptions struct {
	Source        Source
	Sharded       *pipeline.ShardedPipeline
	Sinks         []storage.EventSink
	StatsInterval time.Duration // default 30s
	Logger        *log.Logger
}

// NewRunner creates a continuous ingestion Runner.
func NewRunner(opts RunnerOptions) *Runner {
	statsInterval := opts.StatsInterval
	if statsInterval == 0 {
		statsInterval = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:        opts.Source,
		sharded:       opts.Sharded,
		sinks:         opts.Sinks,
		order:         NewOrderValidator(),
		statsInterval: statsInterval,
		logger:        logger,
	}
}

// Run reads ticks from the source, submits each to the sharded pipeline,
// drains results to the configured sinks, and logs Stats every
// statsInterval. It blocks until ctx is cancelled or the source is
// exhausted.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Println("starting onset-detection runner")

	readErrCh := make(chan error, 1)
	go r.readLoop(ctx, readErrCh)

	statsTicker := time.NewTicker(r.statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("runner stopping: context cancelled")
			r.sharded.Close()
			return ctx.Err()

		case err := <-readErrCh:
			r.logger.Println("runner stopping: source exhausted")
			r.sharded.Close()
			return err

		case result, ok := <-r.sharded.Results():
			if !ok {
				return nil
			}
			r.handleResult(ctx, result)

		case <-statsTicker.C:
			r.logger.Printf("stats: ticks=%d rejected=%d candidates=%d confirmed=%d refractory_rejected=%d",
				r.stats.TicksProcessed, r.stats.TicksRejected,
				r.stats.CandidatesEmitted, r.stats.ConfirmedEmitted, r.stats.RefractoryRejected)
		}
	}
}

func (r *Runner) readLoop(ctx context.Context, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		default:
		}

		tick, err := r.source.Next(ctx)
		if err != nil {
			errCh <- err
			return
		}

		if err := r.order.Check(tick); err != nil {
			r.stats.TicksRejected++
			r.logger.Printf("dropping tick for %s at %d: %v", tick.Symbol, tick.TS, err)
			continue
		}

		r.sharded.Submit(tick)
	}
}

func (r *Runner) handleResult(ctx context.Context, result pipeline.ShardResult) {
	if result.Err != nil {
		r.stats.TicksRejected++
		r.logger.Printf("pipeline error: %v", result.Err)
		return
	}
	r.stats.TicksProcessed++

	for _, ev := range result.Events {
		switch ev.Type {
		case domain.EventTypeCandidate:
			r.stats.CandidatesEmitted++
		case domain.EventTypeConfirmed:
			r.stats.ConfirmedEmitted++
		case domain.EventTypeRejectedRefractory:
			r.stats.RefractoryRejected++
		}
		for _, sink := range r.sinks {
			if err := sink.Write(ctx, &ev); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				r.logger.Printf("sink write failed for %s event on %s: %v", ev.Type, ev.Symbol(), err)
			}
		}
	}
}

// Stats returns a snapshot of the counters accumulated so far.
func (r *Runner) Stats() ManagerStats { return r.stats }
