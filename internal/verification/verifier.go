// Package verification checks that replaying a recorded tick sequence
// reproduces the same onset-detection events as the original run, and
// that no event was influenced by ticks that had not yet arrived.
// Grounded on the field-by-field divergence comparator style of
// solana-token-lab/internal/verification/verifier.go's
// CompareTradeRecords, generalized from a TradeRecord schema to the
// onset-detection Event tagged union.
package verification

import (
	"fmt"
	"math"

	"onset-detect/internal/domain"
)

// FloatTolerance bounds float64 comparisons against accumulated rounding
// drift across two independently constructed pipeline runs.
const FloatTolerance = 1e-7

// EventDivergence records one field that differed between two otherwise
// comparable events.
type EventDivergence struct {
	Field    string
	Expected interface{}
	Actual   interface{}
}

// VerificationResult is the outcome of comparing one pair of events (or an
// unmatched event on one side, Actual/Expected nil respectively).
type VerificationResult struct {
	Index       int
	Match       bool
	Divergences []EventDivergence
}

// VerificationReport summarizes a full comparison run. RunID identifies
// one VerifyDeterminism/VerifyNoLookahead invocation, for correlating a
// report against the audit-trail event rows it was checked against.
type VerificationReport struct {
	RunID           string
	TotalEvents     int
	MatchedEvents   int
	DivergentEvents int
	Results         []VerificationResult
}

// CompareEvents returns the list of fields that differ between expected
// and actual. Both must be non-nil and of the same Type; a Type mismatch
// is itself reported as a single divergence without descending further.
func CompareEvents(expected, actual *domain.Event) []EventDivergence {
	var divs []EventDivergence

	if expected.Type != actual.Type {
		return []EventDivergence{{Field: "Type", Expected: expected.Type, Actual: actual.Type}}
	}
	if expected.Symbol() != actual.Symbol() {
		divs = append(divs, EventDivergence{Field: "Symbol", Expected: expected.Symbol(), Actual: actual.Symbol()})
	}
	if expected.TS() != actual.TS() {
		divs = append(divs, EventDivergence{Field: "TS", Expected: expected.TS(), Actual: actual.TS()})
	}

	switch expected.Type {
	case domain.EventTypeCandidate:
		divs = append(divs, compareCandidate(expected.Candidate, actual.Candidate)...)
	case domain.EventTypeConfirmed:
		divs = append(divs, compareConfirmed(expected.Confirmed, actual.Confirmed)...)
	case domain.EventTypeRejectedRefractory:
		divs = append(divs, compareRefractoryRejected(expected.RefractoryRejected, actual.RefractoryRejected)...)
	}

	return divs
}

func compareCandidate(expected, actual *domain.CandidateEvent) []EventDivergence {
	var divs []EventDivergence
	if !floatEquals(expected.Score, actual.Score) {
		divs = append(divs, EventDivergence{Field: "Candidate.Score", Expected: expected.Score, Actual: actual.Score})
	}
	if fmt.Sprint(expected.TriggerAxes) != fmt.Sprint(actual.TriggerAxes) {
		divs = append(divs, EventDivergence{Field: "Candidate.TriggerAxes", Expected: expected.TriggerAxes, Actual: actual.TriggerAxes})
	}
	return divs
}

func compareConfirmed(expected, actual *domain.ConfirmedEvent) []EventDivergence {
	var divs []EventDivergence
	if expected.ConfirmedFromTS != actual.ConfirmedFromTS {
		divs = append(divs, EventDivergence{Field: "Confirmed.ConfirmedFromTS", Expected: expected.ConfirmedFromTS, Actual: actual.ConfirmedFromTS})
	}
	if fmt.Sprint(expected.SatisfiedAxes) != fmt.Sprint(actual.SatisfiedAxes) {
		divs = append(divs, EventDivergence{Field: "Confirmed.SatisfiedAxes", Expected: expected.SatisfiedAxes, Actual: actual.SatisfiedAxes})
	}
	if !floatEquals(expected.OnsetStrength, actual.OnsetStrength) {
		divs = append(divs, EventDivergence{Field: "Confirmed.OnsetStrength", Expected: expected.OnsetStrength, Actual: actual.OnsetStrength})
	}
	return divs
}

func compareRefractoryRejected(expected, actual *domain.RefractoryRejectedEvent) []EventDivergence {
	var divs []EventDivergence
	if expected.CandidateTS != actual.CandidateTS {
		divs = append(divs, EventDivergence{Field: "RefractoryRejected.CandidateTS", Expected: expected.CandidateTS, Actual: actual.CandidateTS})
	}
	if expected.BlockedUntilTS != actual.BlockedUntilTS {
		divs = append(divs, EventDivergence{Field: "RefractoryRejected.BlockedUntilTS", Expected: expected.BlockedUntilTS, Actual: actual.BlockedUntilTS})
	}
	return divs
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// compareSequences pairs up expected/actual by index and reports a
// mismatch (including length mismatch) as divergent results with nil on
// the missing side.
func compareSequences(expected, actual []domain.Event) *VerificationReport {
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}

	report := &VerificationReport{TotalEvents: n, Results: make([]VerificationResult, 0, n)}
	for i := 0; i < n; i++ {
		res := VerificationResult{Index: i}
		switch {
		case i >= len(expected):
			res.Divergences = []EventDivergence{{Field: "presence", Expected: nil, Actual: actual[i].Type}}
		case i >= len(actual):
			res.Divergences = []EventDivergence{{Field: "presence", Expected: expected[i].Type, Actual: nil}}
		default:
			res.Divergences = CompareEvents(&expected[i], &actual[i])
		}
		res.Match = len(res.Divergences) == 0
		if res.Match {
			report.MatchedEvents++
		} else {
			report.DivergentEvents++
		}
		report.Results = append(report.Results, res)
	}
	return report
}
