// Package candidate implements the Candidate Detector: a stateless
// multi-axis threshold predicate over a single feature record, coupled to
// the Refractory Manager to short-circuit emission during cooldown. Its
// ordered condition checks over a per-symbol tracker are grounded on the
// state-machine style of solana-token-lab/internal/strategy/trailing_stop.go.
// Evaluate emits a fresh candidate for every qualifying tick; it does not
// cap or replace an already-open candidate for a symbol. Arbitration among
// simultaneously open candidates happens downstream, in confirm.Detector's
// earliest-streak-wins rule and its pruneClosed bookkeeping.
package candidate

import (
	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

// RefractoryChecker is the capability the Candidate Detector consults
// before evaluating axes, per spec.md section 4.3: "If symbol is in
// refractory, emit a rejected-by-refractory diagnostic and return nothing."
type RefractoryChecker interface {
	IsBlocked(symbol string, ts int64) bool
	BlockedUntil(symbol string) int64
}

// Strategy is a pluggable candidate-emission rule. The default "sharp"
// strategy implements spec.md section 4.3 verbatim; "gradual" is the
// supplemental dual-pathway extension point named in spec.md section 9.
// Both share the Confirm Detector downstream.
type Strategy interface {
	ID() string
	Evaluate(rec domain.FeatureRecord, baseline *SpreadBaseline) (domain.CandidateEvent, bool)
}

// Detector wires one or more Strategy implementations to a
// RefractoryChecker and the shared per-symbol spread-baseline tracker used
// by the friction axis.
type Detector struct {
	strategies []Strategy
	refractory RefractoryChecker
	baselines  map[string]*SpreadBaseline
	windowS    int
}

// New constructs a Candidate Detector over the given strategies.
func New(cfg config.DetectionConfig, strategies []Strategy, refractory RefractoryChecker) *Detector {
	return &Detector{
		strategies: strategies,
		refractory: refractory,
		baselines:  make(map[string]*SpreadBaseline),
		windowS:    cfg.Onset.FrictionBaselineWindowS,
	}
}

// Result is the outcome of evaluating one feature record: at most one of
// Candidate or Rejected is set.
type Result struct {
	Candidate *domain.CandidateEvent
	Rejected  *domain.RefractoryRejectedEvent
}

// Evaluate runs every active strategy against rec. Strategies never fire
// while the symbol is in refractory. The spread baseline is updated
// unconditionally, since friction-axis history must keep flowing even
// during cooldown (refractory never gates feature computation, only
// candidate emission, per spec.md section 4.5).
func (d *Detector) Evaluate(rec domain.FeatureRecord) Result {
	baseline, ok := d.baselines[rec.Symbol]
	if !ok {
		baseline = NewSpreadBaseline(d.windowS)
		d.baselines[rec.Symbol] = baseline
	}
	baseline.Push(rec.TS, rec.Spread, rec.HasSpread)

	if d.refractory.IsBlocked(rec.Symbol, rec.TS) {
		return Result{Rejected: &domain.RefractoryRejectedEvent{
			TS:             rec.TS,
			Symbol:         rec.Symbol,
			CandidateTS:    rec.TS,
			BlockedUntilTS: d.refractory.BlockedUntil(rec.Symbol),
		}}
	}

	var best *domain.CandidateEvent
	for _, s := range d.strategies {
		ev, fired := s.Evaluate(rec, baseline)
		if !fired {
			continue
		}
		if best == nil || ev.Score > best.Score {
			best = &ev
		}
	}
	if best == nil {
		return Result{}
	}
	return Result{Candidate: best}
}
