package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"onset-detect/internal/domain"
	"onset-detect/internal/pipeline"
	"onset-detect/internal/storage"
)

// Manager drains a Source through a Pipeline and persists whatever events
// result, for batch invocations. It enforces the per-symbol non-decreasing
// ts invariant via OrderValidator before a tick ever reaches the pipeline:
// a tick whose ts regresses is counted in TicksRejected, logged and
// skipped, so it never reaches Feature Engine state.
type Manager struct {
	source   Source
	pipeline *pipeline.Pipeline
	sinks    []storage.EventSink
	order    *OrderValidator
	logger   *log.Logger

	stats ManagerStats
}

// ManagerStats accumulates counts across a Manager.Run invocation.
type ManagerStats struct {
	TicksProcessed  int64
	TicksRejected   int64
	CandidatesEmitted   int64
	ConfirmedEmitted    int64
	RefractoryRejected  int64
}

// ManagerOptions configures Manager construction.
type ManagerOptions struct {
	Source   Source
	Pipeline *pipeline.Pipeline
	Sinks    []storage.EventSink
	Logger   *log.Logger
}

// NewManager constructs a Manager.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		source:   opts.Source,
		pipeline: opts.Pipeline,
		sinks:    opts.Sinks,
		order:    NewOrderValidator(),
		logger:   logger,
	}
}

// Run drains source until io.EOF or ctx cancellation, pushing every tick
// through the pipeline and each resulting event to every configured sink.
// A tick that violates per-symbol ordering or that the pipeline rejects
// (BadInputTick) does not abort the run: it is counted in TicksRejected,
// logged and skipped. An error from the source itself, including a line
// the source cannot parse, ends the run and is returned.
func (m *Manager) Run(ctx context.Context) (ManagerStats, error) {
	for {
		select {
		case <-ctx.Done():
			return m.stats, ctx.Err()
		default:
		}

		tick, err := m.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return m.stats, nil
			}
			return m.stats, fmt.Errorf("read tick: %w", err)
		}

		if err := m.order.Check(tick); err != nil {
			m.stats.TicksRejected++
			m.logger.Printf("dropping tick for %s at %d: %v", tick.Symbol, tick.TS, err)
			continue
		}

		events, err := m.pipeline.Push(tick)
		if err != nil {
			m.stats.TicksRejected++
			m.logger.Printf("dropping tick for %s at %d: %v", tick.Symbol, tick.TS, err)
			continue
		}
		m.stats.TicksProcessed++

		for _, ev := range events {
			m.tallyEvent(ev)
			for _, sink := range m.sinks {
				if err := sink.Write(ctx, &ev); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
					m.logger.Printf("sink write failed for %s event on %s: %v", ev.Type, ev.Symbol(), err)
				}
			}
		}
	}
}

func (m *Manager) tallyEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventTypeCandidate:
		m.stats.CandidatesEmitted++
	case domain.EventTypeConfirmed:
		m.stats.ConfirmedEmitted++
	case domain.EventTypeRejectedRefractory:
		m.stats.RefractoryRejected++
	}
}

// Stats returns a snapshot of the counters accumulated so far.
func (m *Manager) Stats() ManagerStats { return m.stats }
