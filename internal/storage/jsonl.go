package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"onset-detect/internal/domain"
)

// formatDateUTC renders a millisecond epoch timestamp as a UTC calendar
// date, for the "{symbol}_{date}.jsonl" file-naming scheme.
func formatDateUTC(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02")
}

// JSONLEventSink appends one JSON line per event to a per-symbol,
// per-calendar-day file named "{symbol}_{date}.jsonl" under dir, matching
// the persisted-state layout named in spec.md section 6. It never reads
// back what it wrote (EventStore's query methods are left to the
// operational backends); it exists for cheap durable local capture in
// --stream mode.
type JSONLEventSink struct {
	mu   sync.Mutex
	dir  string
	open map[string]*os.File // keyed by "{symbol}_{date}"
}

// NewJSONLEventSink creates a sink that writes under dir, creating it if
// necessary.
func NewJSONLEventSink(dir string) (*JSONLEventSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event sink dir: %w", err)
	}
	return &JSONLEventSink{dir: dir, open: make(map[string]*os.File)}, nil
}

var _ EventSink = (*JSONLEventSink)(nil)

// Write appends one JSON line for ev to its symbol/date file. The line is
// the flattened shape produced by domain.Event.MarshalJSON: event_type, ts,
// symbol, and the variant's own fields as top-level keys, matching the
// persisted-state layout named in spec.md section 6.
func (s *JSONLEventSink) Write(_ context.Context, ev *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileFor(ev.Symbol(), ev.TS())
	if err != nil {
		return err
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write event line: %w", err)
	}
	return nil
}

// WriteBulk writes each event in order, stopping at the first error.
func (s *JSONLEventSink) WriteBulk(ctx context.Context, events []*domain.Event) error {
	for _, ev := range events {
		if err := s.Write(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// fileFor returns the open file handle for symbol's calendar day containing
// ts (UTC), opening and caching it on first use. Caller must hold s.mu.
func (s *JSONLEventSink) fileFor(symbol string, tsMs int64) (*os.File, error) {
	date := formatDateUTC(tsMs)
	key := symbol + "_" + date
	if f, ok := s.open[key]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, key+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.open[key] = f
	return f, nil
}

// Close closes every open file handle.
func (s *JSONLEventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range s.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.open = make(map[string]*os.File)
	return firstErr
}
