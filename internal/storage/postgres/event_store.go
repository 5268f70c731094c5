package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"onset-detect/internal/domain"
	"onset-detect/internal/idhash"
	"onset-detect/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL, as the
// operational audit trail and dedup authority for emitted events.
// Grounded on CandidateStore's Insert/scan shape, generalized from the
// fixed TokenCandidate row to the onset-detection Event tagged union,
// stored as (event_id, event_type, symbol, ts, payload jsonb).
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

var _ storage.EventStore = (*EventStore)(nil)

// Write inserts ev. Returns ErrDuplicateKey if its idhash.ComputeEventID
// already exists (the primary key on onset_events.event_id).
func (s *EventStore) Write(ctx context.Context, ev *domain.Event) error {
	id := idhash.ComputeEventID(ev)

	payload, err := marshalPayload(ev)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO onset_events (event_id, event_type, symbol, ts, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.pool.Exec(ctx, query, id, string(ev.Type), ev.Symbol(), ev.TS(), payload)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// WriteBulk writes each event in a single transaction, rolling back
// entirely if any insert fails (matching SwapStore.InsertBulk's
// all-or-nothing batch semantics).
func (s *EventStore) WriteBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, ev := range events {
		id := idhash.ComputeEventID(ev)
		payload, err := marshalPayload(ev)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO onset_events (event_id, event_type, symbol, ts, payload)
			VALUES ($1, $2, $3, $4, $5)
		`, id, string(ev.Type), ev.Symbol(), ev.TS(), payload)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetBySymbol retrieves events for symbol within [start, end] (inclusive), ordered by ts ASC.
func (s *EventStore) GetBySymbol(ctx context.Context, symbol string, start, end int64) ([]*domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, payload FROM onset_events
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by symbol: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetByType retrieves events of type t for symbol, ordered by ts ASC.
func (s *EventStore) GetByType(ctx context.Context, symbol string, t domain.EventType) ([]*domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, payload FROM onset_events
		WHERE symbol = $1 AND event_type = $2
		ORDER BY ts ASC
	`, symbol, string(t))
	if err != nil {
		return nil, fmt.Errorf("get events by type: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Close is a no-op: the pool is owned by the caller, matching Pool.Close's
// explicit, separately-invoked lifecycle.
func (s *EventStore) Close() error { return nil }

func marshalPayload(ev *domain.Event) ([]byte, error) {
	switch ev.Type {
	case domain.EventTypeCandidate:
		return json.Marshal(ev.Candidate)
	case domain.EventTypeConfirmed:
		return json.Marshal(ev.Confirmed)
	case domain.EventTypeRejectedRefractory:
		return json.Marshal(ev.RefractoryRejected)
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var out []*domain.Event
	for rows.Next() {
		var typ string
		var payload []byte
		if err := rows.Scan(&typ, &payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev := &domain.Event{Type: domain.EventType(typ)}
		switch ev.Type {
		case domain.EventTypeCandidate:
			ev.Candidate = &domain.CandidateEvent{}
			if err := json.Unmarshal(payload, ev.Candidate); err != nil {
				return nil, fmt.Errorf("unmarshal candidate payload: %w", err)
			}
		case domain.EventTypeConfirmed:
			ev.Confirmed = &domain.ConfirmedEvent{}
			if err := json.Unmarshal(payload, ev.Confirmed); err != nil {
				return nil, fmt.Errorf("unmarshal confirmed payload: %w", err)
			}
		case domain.EventTypeRejectedRefractory:
			ev.RefractoryRejected = &domain.RefractoryRejectedEvent{}
			if err := json.Unmarshal(payload, ev.RefractoryRejected); err != nil {
				return nil, fmt.Errorf("unmarshal refractory-rejected payload: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}
