// Package ingestion provides Tick sources: the core pipeline is agnostic
// to transport (spec.md section 6), so this package supplies the external
// collaborators that turn a file, stdin, or a live wire feed into a
// sequence of domain.Tick values. Ordering validation (see ordering.go's
// OrderValidator) is grounded on the source repo's swap-ordering
// validator, adapted from a (slot, tx_signature, event_index) triple-key
// compare to a per-symbol ts-monotonicity check.
package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"onset-detect/internal/domain"
)

// Source is a pull-based tick producer. Next returns io.EOF when the
// source is exhausted.
type Source interface {
	Next(ctx context.Context) (domain.Tick, error)
	Close() error
}

// rawTick mirrors the line-oriented JSON wire shape named in spec.md
// section 6.
type rawTick struct {
	TS      int64   `json:"ts"`
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	Bid1    float64 `json:"bid1"`
	Ask1    float64 `json:"ask1"`
	BidQty1 float64 `json:"bid_qty1"`
	AskQty1 float64 `json:"ask_qty1"`
}

func (r rawTick) toDomain() domain.Tick {
	return domain.Tick{
		TS:      r.TS,
		Symbol:  r.Symbol,
		Price:   r.Price,
		Volume:  r.Volume,
		Bid1:    r.Bid1,
		Ask1:    r.Ask1,
		BidQty1: r.BidQty1,
		AskQty1: r.AskQty1,
	}
}

// JSONLSource reads one tick per line of JSON from an io.Reader: a file, or
// stdin in --stream mode.
type JSONLSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	lineNo  int
}

// NewJSONLSource wraps r. If r also implements io.Closer, Close closes it.
func NewJSONLSource(r io.Reader) *JSONLSource {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	closer, _ := r.(io.Closer)
	return &JSONLSource{scanner: s, closer: closer}
}

// Next parses and returns the next line. Malformed lines surface a
// descriptive error naming the line number, per spec.md section 7's
// batch-entry-point failure behavior.
func (s *JSONLSource) Next(ctx context.Context) (domain.Tick, error) {
	select {
	case <-ctx.Done():
		return domain.Tick{}, ctx.Err()
	default:
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return domain.Tick{}, err
		}
		return domain.Tick{}, io.EOF
	}
	s.lineNo++
	var rt rawTick
	if err := json.Unmarshal(s.scanner.Bytes(), &rt); err != nil {
		return domain.Tick{}, fmt.Errorf("malformed input at line %d: %w", s.lineNo, err)
	}
	return rt.toDomain(), nil
}

func (s *JSONLSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// SliceSource is a structured in-memory tick sequence, for embedded use
// and testing (spec.md section 6's second delivery mode).
type SliceSource struct {
	ticks []domain.Tick
	pos   int
}

// NewSliceSource wraps an in-memory tick slice.
func NewSliceSource(ticks []domain.Tick) *SliceSource {
	return &SliceSource{ticks: ticks}
}

func (s *SliceSource) Next(ctx context.Context) (domain.Tick, error) {
	select {
	case <-ctx.Done():
		return domain.Tick{}, ctx.Err()
	default:
	}
	if s.pos >= len(s.ticks) {
		return domain.Tick{}, io.EOF
	}
	t := s.ticks[s.pos]
	s.pos++
	return t, nil
}

func (s *SliceSource) Close() error { return nil }
