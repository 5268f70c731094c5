// Package features implements the streaming Feature Engine: it converts a
// per-symbol tick stream into feature records using only information
// available at or before the current tick's ts. Adapted from the
// sequential-per-identifier state tracking of
// solana-token-lab/internal/normalization/derived_features.go, rebuilt as a
// true push-based streaming transformer (one record in, one record out, no
// batch sort) per the spec's no-leakage requirement.
package features

import (
	"fmt"
	"math"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

const retClamp = 0.1

// priceSample is one retained (ts, price) pair used to locate the price at
// or before ts-1000ms.
type priceSample struct {
	ts    int64
	price float64
}

// secondBucket accumulates ticks within one floor(ts/1000) second.
type secondBucket struct {
	second int64
	count  float64
	sum    float64
}

// symbolState is the per-symbol rolling state owned exclusively by the
// Feature Engine for that symbol.
type symbolState struct {
	lastTS int64

	priceHistory []priceSample // pruned to trailing 1s, oldest first
	hasPrevRet   bool
	prevRet1s    float64

	bucket        secondBucket
	bucketOpen    bool
	volWindow     int
	volRing       []float64 // closed per-second vol_1s values, ring-bounded to volWindow
	volRingHead   int
	volRingFilled int
	volSum        float64
	volSumSq      float64
	totalClosed   int

	hasPrevMicroprice bool
	prevMicroprice    float64
}

// Engine maintains one symbolState per symbol and emits exactly one
// FeatureRecord per call to Push. It never blocks and never reads future
// ticks.
type Engine struct {
	cfg     config.FeaturesConfig
	symbols map[string]*symbolState
}

// New constructs a Feature Engine. cfg.VolWindowS must be > 0 (validated at
// config-load time).
func New(cfg config.FeaturesConfig) *Engine {
	return &Engine{
		cfg:     cfg,
		symbols: make(map[string]*symbolState),
	}
}

// Push advances the per-symbol state for tick and returns exactly one
// feature record. Returns domain.ErrBadInputTick (wrapped with context) and
// a zero-value record if the tick is invalid; the engine's state for that
// symbol is left unchanged so the caller can skip and continue.
func (e *Engine) Push(tick domain.Tick) (domain.FeatureRecord, error) {
	if !(tick.Price > 0) || math.IsNaN(tick.Price) || math.IsInf(tick.Price, 0) {
		return domain.FeatureRecord{}, fmt.Errorf("%w: symbol=%s ts=%d non-positive or non-finite price %v",
			domain.ErrBadInputTick, tick.Symbol, tick.TS, tick.Price)
	}
	if tick.Volume < 0 || math.IsNaN(tick.Volume) || math.IsInf(tick.Volume, 0) {
		return domain.FeatureRecord{}, fmt.Errorf("%w: symbol=%s ts=%d negative or non-finite volume %v",
			domain.ErrBadInputTick, tick.Symbol, tick.TS, tick.Volume)
	}

	st, ok := e.symbols[tick.Symbol]
	if !ok {
		st = &symbolState{volWindow: e.cfg.VolWindowS}
		e.symbols[tick.Symbol] = st
	} else if tick.TS < st.lastTS {
		return domain.FeatureRecord{}, fmt.Errorf("%w: symbol=%s ts=%d precedes last ts=%d",
			domain.ErrBadInputTick, tick.Symbol, tick.TS, st.lastTS)
	}

	rec := domain.FeatureRecord{
		TS:     tick.TS,
		Symbol: tick.Symbol,
		Price:  tick.Price,
	}

	rec.Ret1s, rec.Ret1sClipped, rec.Accel1s = st.pushPrice(tick.TS, tick.Price)
	rec.TicksPerSec, rec.Vol1s, rec.ZVol1s = st.pushVolume(tick.TS, tick.Volume)
	rec.Spread, rec.HasSpread = computeSpread(tick)
	rec.Microprice, rec.HasMicroprice = computeMicroprice(tick)
	rec.MicropriceSlope = st.pushMicroprice(rec.Microprice, rec.HasMicroprice)

	st.lastTS = tick.TS
	return rec, nil
}

// pushPrice implements section 4.1's ret_1s / accel_1s algorithm.
func (st *symbolState) pushPrice(ts int64, price float64) (ret1s float64, clipped bool, accel1s float64) {
	cutoff := ts - 1000

	if len(st.priceHistory) == 0 {
		ret1s = 0
	} else {
		prior, found := priceAtOrBefore(st.priceHistory, cutoff)
		if !found {
			prior = st.priceHistory[0].price // earliest available prior price
		}
		ret1s = math.Log(price / prior)
	}
	if ret1s > retClamp {
		ret1s = retClamp
		clipped = true
	} else if ret1s < -retClamp {
		ret1s = -retClamp
		clipped = true
	}

	if st.hasPrevRet {
		accel1s = ret1s - st.prevRet1s
	} else {
		accel1s = 0
	}
	st.prevRet1s = ret1s
	st.hasPrevRet = true

	st.priceHistory = append(st.priceHistory, priceSample{ts: ts, price: price})
	st.priceHistory = pruneOlderThan(st.priceHistory, cutoff)

	return ret1s, clipped, accel1s
}

// priceAtOrBefore returns the latest sample with ts <= cutoff, scanning
// from the newest end since the deque is append-ordered and small (at most
// a couple seconds of ticks).
func priceAtOrBefore(hist []priceSample, cutoff int64) (float64, bool) {
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].ts <= cutoff {
			return hist[i].price, true
		}
	}
	return 0, false
}

func pruneOlderThan(hist []priceSample, cutoff int64) []priceSample {
	i := 0
	for i < len(hist) && hist[i].ts < cutoff {
		i++
	}
	if i == 0 {
		return hist
	}
	return append(hist[:0], hist[i:]...)
}

// pushVolume implements section 4.1's per-second-bucket ticks_per_sec,
// vol_1s, and rolling z_vol_1s.
func (st *symbolState) pushVolume(ts int64, volume float64) (ticksPerSec, vol1s, zVol1s float64) {
	second := ts / 1000

	if !st.bucketOpen {
		st.bucket = secondBucket{second: second}
		st.bucketOpen = true
	} else if second > st.bucket.second {
		st.closeBucket()
		st.bucket = secondBucket{second: second}
	}

	st.bucket.count++
	st.bucket.sum += volume

	ticksPerSec = st.bucket.count
	vol1s = st.bucket.sum
	zVol1s = st.zScore(vol1s)
	return
}

func (st *symbolState) closeBucket() {
	v := st.bucket.sum
	if st.volRing == nil {
		st.volRing = make([]float64, st.volWindow)
	}
	if st.volRingFilled == st.volWindow {
		old := st.volRing[st.volRingHead]
		st.volSum -= old
		st.volSumSq -= old * old
	} else {
		st.volRingFilled++
	}
	st.volRing[st.volRingHead] = v
	st.volRingHead = (st.volRingHead + 1) % st.volWindow
	st.volSum += v
	st.volSumSq += v * v
	st.totalClosed++
}

// zScore returns 0 until vol_window closed-second samples have
// accumulated, or if the population standard deviation is 0.
func (st *symbolState) zScore(current float64) float64 {
	if st.totalClosed < st.volWindow || st.volRingFilled == 0 {
		return 0
	}
	n := float64(st.volRingFilled)
	mean := st.volSum / n
	variance := st.volSumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (current - mean) / std
}

func (st *symbolState) pushMicroprice(microprice float64, has bool) float64 {
	if !has {
		return 0
	}
	var slope float64
	if st.hasPrevMicroprice {
		slope = microprice - st.prevMicroprice
	}
	st.prevMicroprice = microprice
	st.hasPrevMicroprice = true
	return slope
}

func computeSpread(t domain.Tick) (float64, bool) {
	if t.Bid1 <= 0 || t.Ask1 <= 0 {
		return 0, false
	}
	mid := (t.Ask1 + t.Bid1) / 2
	if mid <= 0 {
		return 0, false
	}
	return (t.Ask1 - t.Bid1) / mid, true
}

func computeMicroprice(t domain.Tick) (float64, bool) {
	totalQty := t.AskQty1 + t.BidQty1
	if totalQty <= 0 {
		return 0, false
	}
	return (t.Bid1*t.AskQty1 + t.Ask1*t.BidQty1) / totalQty, true
}
