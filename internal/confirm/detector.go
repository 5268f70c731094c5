// Package confirm implements the Confirm Detector, the core hard part of
// the pipeline: it decides whether a candidate represents a real onset by
// comparing a pre-window baseline against a post-candidate confirmation
// window, demanding delta-improvement across the mandatory price axis and
// at least min_axes-1 additional axes, held for persistent_n consecutive
// records, earliest-hit wins. Grounded on the ring-buffer-plus-accumulator
// shape of solana-token-lab/internal/strategy/trailing_stop.go, generalized
// from a single price-trailing-stop state machine into a per-axis
// delta-improvement persistence tracker.
package confirm

import (
	"sort"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

// RefractoryNotifier is the capability the Confirm Detector calls on
// confirmation, per spec.md section 4.4 step 2: "notify Refractory
// Manager".
type RefractoryNotifier interface {
	OnConfirm(symbol string, ts int64)
}

// Detector holds one symbolState per symbol seen so far.
type Detector struct {
	cfg        config.ConfirmConfig
	refractory RefractoryNotifier
	symbols    map[string]*symbolState
}

// New constructs a Confirm Detector.
func New(cfg config.ConfirmConfig, refractory RefractoryNotifier) *Detector {
	return &Detector{cfg: cfg, refractory: refractory, symbols: make(map[string]*symbolState)}
}

type symbolState struct {
	ring       []domain.FeatureRecord // spans at least pre_window_s+window_s, oldest first
	windowMs   int64
	candidates []*openCandidate
}

type openCandidate struct {
	event domain.CandidateEvent

	preRet        float64
	preZVol       float64
	preSpread     float64
	preHasSpread  bool
	preSlope      float64

	deadlineTS int64 // c.ts + window_s*1000; candidate dropped silently if elapsed without confirming

	streakLen            int
	streakStartTS        int64
	streakStartSatisfied domain.ConfirmAxisSet
	streakStartStrength  float64
	streakStartEvidence  domain.ConfirmedEvidence

	confirmed bool
}

// AddCandidate opens a new candidate for tracking. If the pre-window is
// entirely empty, the candidate is dropped silently (EmptyPreWindow).
func (d *Detector) AddCandidate(c domain.CandidateEvent) {
	st, ok := d.symbols[c.Symbol]
	if !ok {
		st = &symbolState{windowMs: int64(d.cfg.PreWindowS+d.cfg.WindowS) * 1000}
		d.symbols[c.Symbol] = st
	}

	preCutoffLo := c.TS - int64(d.cfg.PreWindowS)*1000
	var pre []domain.FeatureRecord
	for _, r := range st.ring {
		if r.TS >= preCutoffLo && r.TS < c.TS {
			pre = append(pre, r)
		}
	}
	if len(pre) == 0 {
		return // domain.ErrEmptyPreWindow: dropped silently, diagnostic is the caller's concern
	}

	oc := &openCandidate{
		event:      c,
		deadlineTS: c.TS + int64(d.cfg.WindowS)*1000,
	}
	if len(pre) < 2 {
		r := pre[0]
		oc.preRet = r.Ret1s
		oc.preZVol = r.ZVol1s
		oc.preSlope = r.MicropriceSlope
		if r.HasSpread {
			oc.preSpread = r.Spread
			oc.preHasSpread = true
		}
	} else {
		oc.preRet = median(mapFloats(pre, func(r domain.FeatureRecord) float64 { return r.Ret1s }))
		oc.preZVol = median(mapFloats(pre, func(r domain.FeatureRecord) float64 { return r.ZVol1s }))
		oc.preSlope = median(mapFloats(pre, func(r domain.FeatureRecord) float64 { return r.MicropriceSlope }))
		var spreads []float64
		for _, r := range pre {
			if r.HasSpread {
				spreads = append(spreads, r.Spread)
			}
		}
		if len(spreads) > 0 {
			oc.preSpread = median(spreads)
			oc.preHasSpread = true
		}
	}

	st.candidates = append(st.candidates, oc)
}

// Push feeds a new feature record to every open candidate for its symbol,
// pruning the ring buffer and advancing each candidate's persistence
// streak. It returns a Confirmed event if one completed on this record.
func (d *Detector) Push(rec domain.FeatureRecord) *domain.ConfirmedEvent {
	st, ok := d.symbols[rec.Symbol]
	if !ok {
		st = &symbolState{windowMs: int64(d.cfg.PreWindowS+d.cfg.WindowS) * 1000}
		d.symbols[rec.Symbol] = st
	}

	st.ring = append(st.ring, rec)
	cutoff := rec.TS - st.windowMs
	i := 0
	for i < len(st.ring) && st.ring[i].TS < cutoff {
		i++
	}
	if i > 0 {
		st.ring = append(st.ring[:0], st.ring[i:]...)
	}

	var winner *openCandidate
	for _, oc := range st.candidates {
		if oc.confirmed {
			continue
		}
		if !d.inPostWindow(oc, rec.TS) {
			continue
		}
		d.evaluateHit(oc, rec)
		if oc.streakLen >= d.cfg.PersistentN {
			oc.confirmed = true
			if winner == nil || oc.streakStartTS < winner.streakStartTS {
				winner = oc
			}
		}
	}

	var confirmed *domain.ConfirmedEvent
	if winner != nil {
		confirmed = &domain.ConfirmedEvent{
			TS:              winner.streakStartTS,
			Symbol:          rec.Symbol,
			ConfirmedFromTS: winner.event.TS,
			SatisfiedAxes:   winner.streakStartSatisfied.Slice(),
			OnsetStrength:   winner.streakStartStrength,
			Evidence:        winner.streakStartEvidence,
		}
		d.refractory.OnConfirm(rec.Symbol, confirmed.TS)
	}

	st.candidates = pruneClosed(st.candidates, rec.TS, confirmed != nil)
	return confirmed
}

func (d *Detector) inPostWindow(oc *openCandidate, ts int64) bool {
	if d.cfg.ExcludeCandPoint {
		return ts > oc.event.TS && ts <= oc.deadlineTS
	}
	return ts >= oc.event.TS && ts <= oc.deadlineTS
}

func (d *Detector) evaluateHit(oc *openCandidate, x domain.FeatureRecord) {
	satisfied := domain.ConfirmAxisSet{}

	priceSatisfied := (x.Ret1s-oc.preRet) >= d.cfg.Delta.RetMin ||
		(x.MicropriceSlope-oc.preSlope) >= d.cfg.Delta.RetMin
	if priceSatisfied {
		satisfied[domain.AxisPrice] = true
	}
	if (x.ZVol1s - oc.preZVol) >= d.cfg.Delta.ZVolMin {
		satisfied[domain.AxisVolume] = true
	}
	if x.HasSpread && oc.preHasSpread && (oc.preSpread-x.Spread) >= d.cfg.Delta.SpreadDrop {
		satisfied[domain.AxisFriction] = true
	}

	strength := float64(satisfied.Count()) / 3
	isHit := satisfied.Count() >= d.cfg.MinAxes && strength >= d.cfg.OnsetStrengthMin
	if d.cfg.RequirePriceAxis {
		isHit = isHit && priceSatisfied
	}

	if !isHit {
		oc.streakLen = 0
		return
	}

	if oc.streakLen == 0 {
		oc.streakStartTS = x.TS
		oc.streakStartSatisfied = satisfied
		oc.streakStartStrength = strength
		oc.streakStartEvidence = domain.ConfirmedEvidence{
			DeltaRet:           x.Ret1s - oc.preRet,
			DeltaZVol:          x.ZVol1s - oc.preZVol,
			DeltaSpread:        oc.preSpread - x.Spread,
			PreRet:             oc.preRet,
			PreZVol:            oc.preZVol,
			PreSpread:          oc.preSpread,
			PreMicropriceSlope: oc.preSlope,
			PostRet:            x.Ret1s,
			PostZVol:           x.ZVol1s,
			PostSpread:         x.Spread,
		}
	}
	oc.streakLen++
}

// pruneClosed drops candidates that confirmed (except the winner-to-be,
// already marked confirmed above and removed here too), were discarded
// because another candidate confirmed first, or whose window fully
// elapsed without confirming.
func pruneClosed(cands []*openCandidate, ts int64, hadWinner bool) []*openCandidate {
	if hadWinner {
		return nil // on confirmation, any other open candidate for the symbol is discarded
	}
	kept := cands[:0]
	for _, oc := range cands {
		if ts > oc.deadlineTS {
			continue // confirmation window fully elapsed without a persistent run: silent drop
		}
		kept = append(kept, oc)
	}
	return kept
}

func mapFloats(recs []domain.FeatureRecord, f func(domain.FeatureRecord) float64) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = f(r)
	}
	return out
}

// median is the exact lower-median order statistic: for an even count it
// returns the lower of the two middle values, with no interpolation.
// sort.Float64s gives a deterministic ordering.
func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}
