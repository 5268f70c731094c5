package pipeline

import (
	"context"
	"hash/fnv"
	"sync"

	"onset-detect/internal/domain"
)

// ShardResult pairs the tick that produced it with whatever events (if
// any) and error resulted, so callers can correlate output back to input
// when draining the shared output channel.
type ShardResult struct {
	Events []domain.Event
	Err    error
}

// ShardedPipeline implements the concurrency model of spec.md section 5:
// single-threaded per symbol, parallel across symbols, via a simple
// sharding by symbol hash. Each worker owns a disjoint, independently
// constructed Pipeline and processes its queue strictly in arrival order;
// there is no shared mutable state between shards.
type ShardedPipeline struct {
	shards []*Pipeline
	queues []chan shardJob
	out    chan ShardResult
	wg     sync.WaitGroup
}

type shardJob struct {
	tick domain.Tick
}

// NewSharded constructs n worker shards, each an independently configured
// Pipeline built from opts. queueDepth bounds each shard's per-symbol
// input queue.
func NewSharded(ctx context.Context, n int, queueDepth int, opts Options) (*ShardedPipeline, error) {
	if n < 1 {
		n = 1
	}
	sp := &ShardedPipeline{
		shards: make([]*Pipeline, n),
		queues: make([]chan shardJob, n),
		out:    make(chan ShardResult, queueDepth*n),
	}
	for i := 0; i < n; i++ {
		p, err := New(opts)
		if err != nil {
			return nil, err
		}
		sp.shards[i] = p
		sp.queues[i] = make(chan shardJob, queueDepth)
	}
	for i := 0; i < n; i++ {
		sp.wg.Add(1)
		go sp.runShard(ctx, i)
	}
	return sp, nil
}

func (sp *ShardedPipeline) runShard(ctx context.Context, idx int) {
	defer sp.wg.Done()
	p := sp.shards[idx]
	q := sp.queues[idx]
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q:
			if !ok {
				return
			}
			events, err := p.Push(job.tick)
			sp.out <- ShardResult{Events: events, Err: err}
		}
	}
}

// Submit routes tick to the shard owning its symbol. Ticks for the same
// symbol always land on the same shard, preserving per-symbol ordering as
// long as the caller submits each symbol's ticks in non-decreasing ts
// order.
func (sp *ShardedPipeline) Submit(tick domain.Tick) {
	sp.queues[shardIndex(tick.Symbol, len(sp.queues))] <- shardJob{tick: tick}
}

// Results returns the channel of emitted events and errors, shared across
// all shards. Order across symbols is not guaranteed; order within a
// symbol is, since a symbol is always processed by the same shard.
func (sp *ShardedPipeline) Results() <-chan ShardResult { return sp.out }

// Close shuts down all shard input queues and waits for in-flight ticks to
// drain, then closes the output channel. Safe to call once.
func (sp *ShardedPipeline) Close() {
	for _, q := range sp.queues {
		close(q)
	}
	sp.wg.Wait()
	close(sp.out)
}

func shardIndex(symbol string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return int(h.Sum32()) % n
}
