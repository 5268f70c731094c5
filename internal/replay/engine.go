// Package replay drives a recorded tick sequence through a fresh Pipeline,
// the same way ingestion.Manager drives a live/batch Source, so that
// replaying a capture produces byte-for-byte the events the original run
// produced. The two entry points share the same Pipeline.Push call; the
// only difference is where ticks come from. Grounded on the unified
// OnEvent callback shape of solana-token-lab/internal/replay/engine.go's
// ReplayEngine, generalized from a (slot, tx_signature, event_index)
// ordered swap/liquidity union to a single domain.Tick stream.
package replay

import (
	"context"
	"errors"
	"io"

	"onset-detect/internal/domain"
	"onset-detect/internal/ingestion"
	"onset-detect/internal/pipeline"
)

// OnEvent, when non-nil, is called for each event as it is produced,
// preserving arrival order; the caller may still rely on Engine.Run's
// returned slice holding the same events for convenience.
type OnEvent func(ctx context.Context, ev domain.Event) error

// Engine replays a Source through a single, freshly constructed Pipeline.
// It never shards: replay determinism depends on a single ordered pass
// per symbol, and a capture small enough to replay rarely needs the
// concurrency ShardedPipeline exists for.
type Engine struct {
	p *pipeline.Pipeline
}

// NewEngine constructs a replay Engine from pipeline options.
func NewEngine(opts pipeline.Options) (*Engine, error) {
	p, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}
	return &Engine{p: p}, nil
}

// Run drains source to completion, pushing every tick through the
// pipeline in arrival order. It returns every event produced, and also
// invokes onEvent (if non-nil) as each is produced. A tick rejected by
// the Feature Engine (domain.ErrBadInputTick) is skipped, matching
// ingestion.Manager's tolerance for a single malformed record.
func (e *Engine) Run(ctx context.Context, source ingestion.Source, onEvent OnEvent) ([]domain.Event, error) {
	var out []domain.Event
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		tick, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}

		events, err := e.p.Push(tick)
		if err != nil {
			continue
		}

		for _, ev := range events {
			out = append(out, ev)
			if onEvent != nil {
				if err := onEvent(ctx, ev); err != nil {
					return out, err
				}
			}
		}
	}
}
