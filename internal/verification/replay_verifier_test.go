package verification

import (
	"context"
	"testing"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
	"onset-detect/internal/pipeline"
)

func surgeConfig() config.Config {
	cfg := config.Default()
	cfg.Detection.MinAxesRequired = 1
	cfg.Detection.Onset.SpeedRet1sThreshold = 0.001
	cfg.Confirm.WindowS = 20
	cfg.Confirm.PreWindowS = 3
	cfg.Confirm.PersistentN = 2
	cfg.Confirm.MinAxes = 1
	cfg.Confirm.OnsetStrengthMin = 0.1
	cfg.Confirm.Delta.RetMin = 0.0001
	return cfg
}

func surgeTicks() []domain.Tick {
	var ticks []domain.Tick
	price := 100.0
	for i := 0; i < 10; i++ {
		ticks = append(ticks, domain.Tick{TS: int64(i) * 1000, Symbol: "005930", Price: price, Volume: 1, Bid1: 99.9, Ask1: 100.1, BidQty1: 10, AskQty1: 10})
	}
	for i := 0; i < 10; i++ {
		price += 1
		ticks = append(ticks, domain.Tick{TS: int64(10+i) * 1000, Symbol: "005930", Price: price, Volume: 1, Bid1: 99.9, Ask1: 100.1, BidQty1: 10, AskQty1: 10})
	}
	return ticks
}

func TestVerifyDeterminismCleanOnIdenticalRuns(t *testing.T) {
	v := NewReplayVerifier(pipeline.Options{Config: surgeConfig()})
	report, err := v.VerifyDeterminism(context.Background(), surgeTicks())
	if err != nil {
		t.Fatalf("VerifyDeterminism: %v", err)
	}
	if report.DivergentEvents != 0 {
		t.Errorf("two independently constructed pipelines diverged on identical input: %+v", report.Results)
	}
	if report.TotalEvents == 0 {
		t.Error("expected at least one event from the surge scenario")
	}
}

func TestVerifyNoLookaheadCleanAcrossCheckpoints(t *testing.T) {
	v := NewReplayVerifier(pipeline.Options{Config: surgeConfig()})
	ticks := surgeTicks()
	report, err := v.VerifyNoLookahead(context.Background(), ticks, []int{5, 10, 15, len(ticks)})
	if err != nil {
		t.Fatalf("VerifyNoLookahead: %v", err)
	}
	if report.DivergentEvents != 0 {
		t.Errorf("a prefix replay diverged from the full run's matching prefix: %+v", report.Results)
	}
}

func TestVerifyNoLookaheadSkipsOutOfRangeCheckpoints(t *testing.T) {
	v := NewReplayVerifier(pipeline.Options{Config: surgeConfig()})
	ticks := surgeTicks()
	report, err := v.VerifyNoLookahead(context.Background(), ticks, []int{0, -1, len(ticks) + 100})
	if err != nil {
		t.Fatalf("VerifyNoLookahead: %v", err)
	}
	if report.TotalEvents != 0 {
		t.Errorf("expected no checkpoints evaluated, got %+v", report)
	}
}
