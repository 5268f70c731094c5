package candidate

import (
	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

// GradualStrategy is the supplemental dual-pathway candidate strategy named
// as an extension point in spec.md section 9: a sustained slow build-up
// whose per-tick ret_1s never clears the sharp speed threshold, but whose
// trailing average over AvgTicks consecutive ticks clears a lower bar.
// It shares the friction axis definition with SharpStrategy and the same
// Confirm Detector downstream; only the speed and participation axes use
// their own, gentler thresholds.
type GradualStrategy struct {
	minAxesRequired int
	onset           config.OnsetAxisConfig
	gradual         config.GradualConfig
	symbols         map[string]*retWindow
}

// NewGradualStrategy constructs the gradual candidate-detection strategy.
func NewGradualStrategy(cfg config.DetectionConfig) *GradualStrategy {
	return &GradualStrategy{
		minAxesRequired: cfg.MinAxesRequired,
		onset:           cfg.Onset,
		gradual:         cfg.Gradual,
		symbols:         make(map[string]*retWindow),
	}
}

func (s *GradualStrategy) ID() string { return "gradual" }

// retWindow is a small fixed-size ring of recent ret_1s values used to
// compute the trailing average.
type retWindow struct {
	buf   []float64
	next  int
	count int
}

func newRetWindow(size int) *retWindow {
	return &retWindow{buf: make([]float64, size)}
}

func (w *retWindow) push(v float64) float64 {
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.buf[i]
	}
	return sum / float64(w.count)
}

func (s *GradualStrategy) Evaluate(rec domain.FeatureRecord, baseline *SpreadBaseline) (domain.CandidateEvent, bool) {
	rw, ok := s.symbols[rec.Symbol]
	if !ok {
		rw = newRetWindow(s.gradual.AvgTicks)
		s.symbols[rec.Symbol] = rw
	}
	avgRet := rw.push(rec.Ret1s)

	fired := domain.CandidateAxisSet{}

	if avgRet > s.gradual.SpeedRet1sThreshold && avgRet <= s.onset.SpeedRet1sThreshold {
		fired[domain.AxisSpeed] = true
	}
	if rec.ZVol1s > s.gradual.ParticipationZVolThreshold {
		fired[domain.AxisParticipation] = true
	}
	if rec.HasSpread {
		if medianSpread, ok := baseline.Median(); ok {
			if rec.Spread < medianSpread*s.onset.FrictionSpreadNarrowingPct {
				fired[domain.AxisFrictionCand] = true
			}
		}
	}

	count := len(fired)
	if count < s.minAxesRequired {
		return domain.CandidateEvent{}, false
	}

	return domain.CandidateEvent{
		TS:          rec.TS,
		Symbol:      rec.Symbol,
		Score:       float64(count),
		TriggerAxes: fired.Slice(),
		Evidence: domain.CandidateEvidence{
			Ret1s:  avgRet,
			ZVol1s: rec.ZVol1s,
			Spread: rec.Spread,
		},
	}, true
}
