package storage

import (
	"context"

	"onset-detect/internal/domain"
)

// EventSink persists emitted onset-detection events (Candidate, Confirmed,
// RefractoryRejected). The EventStore backends (memory, postgres) return
// ErrDuplicateKey from Write if an event with the same
// idhash.ComputeEventID already exists; JSONLEventSink appends every event
// it is given and does no duplicate check.
type EventSink interface {
	Write(ctx context.Context, ev *domain.Event) error
	WriteBulk(ctx context.Context, events []*domain.Event) error
	Close() error
}

// EventStore additionally supports querying back what was written, for the
// operational audit trail.
type EventStore interface {
	EventSink

	GetBySymbol(ctx context.Context, symbol string, start, end int64) ([]*domain.Event, error)
	GetByType(ctx context.Context, symbol string, t domain.EventType) ([]*domain.Event, error)
}

// FeatureRecordStore archives the dense per-tick Feature Engine output for
// offline analysis (threshold tuning, replay-equivalence checks), distinct
// from the sparse Event stream EventStore carries.
type FeatureRecordStore interface {
	InsertBulk(ctx context.Context, symbol string, records []domain.FeatureRecord) error
	GetBySymbol(ctx context.Context, symbol string, start, end int64) ([]domain.FeatureRecord, error)
	Close() error
}
