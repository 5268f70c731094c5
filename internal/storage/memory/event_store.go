package memory

import (
	"context"
	"sort"
	"sync"

	"onset-detect/internal/domain"
	"onset-detect/internal/idhash"
	"onset-detect/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore, grounded
// on CandidateStore's copy-on-read/copy-on-write map discipline.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Event // keyed by idhash.ComputeEventID
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{data: make(map[string]*domain.Event)}
}

var _ storage.EventStore = (*EventStore)(nil)

// Write adds a new event. Returns ErrDuplicateKey if its id already exists.
func (s *EventStore) Write(_ context.Context, ev *domain.Event) error {
	if ev == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := idhash.ComputeEventID(ev)
	if _, exists := s.data[id]; exists {
		return storage.ErrDuplicateKey
	}

	evCopy := *ev
	s.data[id] = &evCopy
	return nil
}

// WriteBulk writes each event in order, stopping at the first duplicate.
func (s *EventStore) WriteBulk(ctx context.Context, events []*domain.Event) error {
	for _, ev := range events {
		if err := s.Write(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// GetBySymbol retrieves all events for a symbol within [start, end] (inclusive), ordered by ts ASC.
func (s *EventStore) GetBySymbol(_ context.Context, symbol string, start, end int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, ev := range s.data {
		if ev.Symbol() == symbol && ev.TS() >= start && ev.TS() <= end {
			evCopy := *ev
			result = append(result, &evCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TS() < result[j].TS() })
	return result, nil
}

// GetByType retrieves all events of a given type for a symbol, ordered by ts ASC.
func (s *EventStore) GetByType(_ context.Context, symbol string, t domain.EventType) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, ev := range s.data {
		if ev.Symbol() == symbol && ev.Type == t {
			evCopy := *ev
			result = append(result, &evCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TS() < result[j].TS() })
	return result, nil
}

// Close is a no-op for the in-memory backend.
func (s *EventStore) Close() error { return nil }
