// Package cpd implements the optional CPD Gate: a per-symbol online
// change-point pre-filter using CUSUM on price return and Page-Hinkley on
// volume z-score. No equivalent exists anywhere in the retrieval corpus;
// this is built directly from the two-axis algorithm spec'd for the core,
// following the stateful threshold-crossing accumulator style of
// solana-token-lab/internal/strategy/trailing_stop.go (peak-tracking state
// machine re-evaluated on every new sample).
package cpd

import (
	"math"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

// Gate implements the domain.ChangePointGate capability described in
// spec.md section 9: UpdateAndCheck(feature_record) -> bool. When disabled
// it is a no-op that always passes.
type Gate struct {
	cfg     config.CPDConfig
	symbols map[string]*symbolState
}

// New constructs a CPD Gate. When cfg.Use is false, UpdateAndCheck always
// returns true without maintaining any state.
func New(cfg config.CPDConfig) *Gate {
	return &Gate{cfg: cfg, symbols: make(map[string]*symbolState)}
}

type symbolState struct {
	warmupSamples int

	// CUSUM baseline (price axis)
	retMean  float64
	retM2    float64 // Welford accumulator for variance
	retCount int
	sPlus    float64

	// Page-Hinkley baseline (volume axis)
	zvolMean  float64
	zvolCount int
	mT        float64
	bigMT     float64

	lastTriggerTS int64
	hasTriggered  bool
}

// UpdateAndCheck updates both detectors' running baselines with rec and
// reports whether either axis fires on this record, subject to cooldown.
// Always returns true if the gate is disabled.
func (g *Gate) UpdateAndCheck(rec domain.FeatureRecord) bool {
	if !g.cfg.Use {
		return true
	}

	st, ok := g.symbols[rec.Symbol]
	if !ok {
		st = &symbolState{}
		g.symbols[rec.Symbol] = st
	}

	inCooldown := st.hasTriggered && float64(rec.TS-st.lastTriggerTS) < g.cfg.CooldownS*1000

	if st.warmupSamples < g.cfg.Price.MinPreS {
		st.updateBaselines(rec)
		st.warmupSamples++
		return false
	}

	priceFired := st.updateCUSUM(rec.Ret1s, g.cfg.Price.KSigma, g.cfg.Price.HMult, inCooldown)
	volFired := st.updatePageHinkley(rec.ZVol1s, g.cfg.Volume.Delta, g.cfg.Volume.Lambda, inCooldown)

	fired := priceFired || volFired
	if fired && !inCooldown {
		st.lastTriggerTS = rec.TS
		st.hasTriggered = true
	}
	return fired
}

// updateBaselines folds a warmup sample into the running mean/variance
// estimators without evaluating either detector.
func (st *symbolState) updateBaselines(rec domain.FeatureRecord) {
	st.retCount++
	delta := rec.Ret1s - st.retMean
	st.retMean += delta / float64(st.retCount)
	st.retM2 += delta * (rec.Ret1s - st.retMean)

	st.zvolCount++
	st.zvolMean += (rec.ZVol1s - st.zvolMean) / float64(st.zvolCount)
}

func (st *symbolState) stdDev() float64 {
	if st.retCount < 2 {
		return 0
	}
	v := st.retM2 / float64(st.retCount)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// updateCUSUM maintains the one-sided CUSUM accumulator on ret_1s and
// reports whether it crosses the trigger threshold this record. Baselines
// continue to update even during cooldown; only the trigger is suppressed.
func (st *symbolState) updateCUSUM(ret1s, kSigma, hMult float64, inCooldown bool) bool {
	st.retCount++
	delta := ret1s - st.retMean
	st.retMean += delta / float64(st.retCount)
	st.retM2 += delta * (ret1s - st.retMean)

	sigma := st.stdDev()
	if sigma == 0 {
		return false
	}
	k := kSigma * sigma
	st.sPlus += (ret1s-st.retMean)/sigma - k
	if st.sPlus < 0 {
		st.sPlus = 0
	}

	threshold := hMult * maxFloat(k, 1)
	if st.sPlus > threshold {
		st.sPlus = 0
		return !inCooldown
	}
	return false
}

// updatePageHinkley maintains the Page-Hinkley accumulator on z_vol_1s and
// reports whether it crosses the trigger threshold this record.
func (st *symbolState) updatePageHinkley(zvol1s, delta, lambda float64, inCooldown bool) bool {
	st.zvolCount++
	st.zvolMean += (zvol1s - st.zvolMean) / float64(st.zvolCount)

	st.mT += zvol1s - st.zvolMean - delta
	if st.mT > st.bigMT {
		st.bigMT = st.mT
	}

	if st.bigMT-st.mT > lambda {
		st.mT = 0
		st.bigMT = 0
		return !inCooldown
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
