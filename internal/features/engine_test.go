package features

import (
	"errors"
	"math"
	"testing"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

func tick(ts int64, price, volume float64) domain.Tick {
	return domain.Tick{TS: ts, Symbol: "005930", Price: price, Volume: volume}
}

func TestPushRejectsNonPositivePrice(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	_, err := e.Push(tick(1000, 0, 1))
	if !errors.Is(err, domain.ErrBadInputTick) {
		t.Fatalf("Push with zero price = %v, want ErrBadInputTick", err)
	}
}

func TestPushRejectsNegativeVolume(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	_, err := e.Push(tick(1000, 100, -1))
	if !errors.Is(err, domain.ErrBadInputTick) {
		t.Fatalf("Push with negative volume = %v, want ErrBadInputTick", err)
	}
}

func TestPushRejectsTSRegression(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	if _, err := e.Push(tick(2000, 100, 1)); err != nil {
		t.Fatalf("first push: %v", err)
	}
	_, err := e.Push(tick(1000, 100, 1))
	if !errors.Is(err, domain.ErrBadInputTick) {
		t.Fatalf("Push with ts regression = %v, want ErrBadInputTick", err)
	}
}

func TestFirstTickHasZeroRetAndAccel(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	rec, err := e.Push(tick(1000, 100, 1))
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if rec.Ret1s != 0 || rec.Accel1s != 0 {
		t.Errorf("first tick Ret1s=%v Accel1s=%v, want 0, 0", rec.Ret1s, rec.Accel1s)
	}
}

func TestRet1sUsesPriceAtOrBeforeOneSecondAgo(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	if _, err := e.Push(tick(0, 100, 1)); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	rec, err := e.Push(tick(1000, 110, 1))
	if err != nil {
		t.Fatalf("push 2: %v", err)
	}
	want := math.Log(110.0 / 100.0)
	if math.Abs(rec.Ret1s-want) > 1e-9 {
		t.Errorf("Ret1s = %v, want %v", rec.Ret1s, want)
	}
}

func TestRet1sClampedToRange(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	if _, err := e.Push(tick(0, 100, 1)); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	rec, err := e.Push(tick(1000, 1000, 1))
	if err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if rec.Ret1s != retClamp {
		t.Errorf("Ret1s = %v, want clamp %v", rec.Ret1s, retClamp)
	}
	if !rec.Ret1sClipped {
		t.Error("Ret1sClipped = false, want true once the clamp fires")
	}
}

func TestRet1sClippedFalseWhenWithinRange(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	if _, err := e.Push(tick(0, 100, 1)); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	rec, err := e.Push(tick(1000, 110, 1))
	if err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if rec.Ret1sClipped {
		t.Error("Ret1sClipped = true, want false when the clamp does not fire")
	}
}

func TestZVol1sZeroDuringWarmup(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 5})
	var rec domain.FeatureRecord
	var err error
	for i := int64(0); i < 3; i++ {
		rec, err = e.Push(tick(i*1000, 100, 10))
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if rec.ZVol1s != 0 {
		t.Errorf("ZVol1s during warmup = %v, want 0", rec.ZVol1s)
	}
}

func TestZVol1sNonZeroAfterWarmupWithVariation(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 3})
	vols := []float64{10, 12, 8, 10, 100}
	var rec domain.FeatureRecord
	var err error
	for i, v := range vols {
		rec, err = e.Push(tick(int64(i)*1000, 100, v))
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if rec.ZVol1s <= 0 {
		t.Errorf("ZVol1s after a volume spike = %v, want > 0", rec.ZVol1s)
	}
}

func TestSpreadUndefinedWithoutBothSides(t *testing.T) {
	tk := tick(0, 100, 1)
	tk.Bid1 = 0
	tk.Ask1 = 101
	e := New(config.FeaturesConfig{VolWindowS: 300})
	rec, err := e.Push(tk)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if rec.HasSpread {
		t.Error("HasSpread should be false when bid is zero")
	}
}

func TestSpreadDefinedWithBothSides(t *testing.T) {
	tk := tick(0, 100, 1)
	tk.Bid1 = 99
	tk.Ask1 = 101
	e := New(config.FeaturesConfig{VolWindowS: 300})
	rec, err := e.Push(tk)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !rec.HasSpread {
		t.Fatal("HasSpread should be true with both book sides present")
	}
	want := (101.0 - 99.0) / 100.0
	if math.Abs(rec.Spread-want) > 1e-9 {
		t.Errorf("Spread = %v, want %v", rec.Spread, want)
	}
}

func TestMicropriceSlopeZeroOnFirstAvailableSample(t *testing.T) {
	tk := tick(0, 100, 1)
	tk.Bid1, tk.Ask1, tk.BidQty1, tk.AskQty1 = 99, 101, 10, 10
	e := New(config.FeaturesConfig{VolWindowS: 300})
	rec, err := e.Push(tk)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if rec.MicropriceSlope != 0 {
		t.Errorf("MicropriceSlope on first sample = %v, want 0", rec.MicropriceSlope)
	}
}

func TestDisjointPerSymbolState(t *testing.T) {
	e := New(config.FeaturesConfig{VolWindowS: 300})
	if _, err := e.Push(tick(0, 100, 1)); err != nil {
		t.Fatalf("push symbol A: %v", err)
	}
	other := domain.Tick{TS: 0, Symbol: "000660", Price: 50, Volume: 1}
	rec, err := e.Push(other)
	if err != nil {
		t.Fatalf("push symbol B: %v", err)
	}
	if rec.Ret1s != 0 {
		t.Errorf("new symbol's first Ret1s = %v, want 0 (independent of symbol A's state)", rec.Ret1s)
	}
}
