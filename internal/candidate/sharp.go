package candidate

import (
	"onset-detect/internal/config"
	"onset-detect/internal/domain"
)

// SharpStrategy implements spec.md section 4.3's absolute multi-axis
// threshold predicate verbatim: speed (ret_1s), participation (z_vol_1s),
// friction (spread narrowing vs. trailing median baseline).
type SharpStrategy struct {
	minAxesRequired int
	onset           config.OnsetAxisConfig
}

// NewSharpStrategy constructs the default candidate-detection strategy.
func NewSharpStrategy(cfg config.DetectionConfig) *SharpStrategy {
	return &SharpStrategy{
		minAxesRequired: cfg.MinAxesRequired,
		onset:           cfg.Onset,
	}
}

func (s *SharpStrategy) ID() string { return "sharp" }

// Evaluate computes axis indicators on rec; if at least minAxesRequired
// fire, forms a CandidateEvent with score = count of fired axes.
func (s *SharpStrategy) Evaluate(rec domain.FeatureRecord, baseline *SpreadBaseline) (domain.CandidateEvent, bool) {
	fired := domain.CandidateAxisSet{}

	if rec.Ret1s > s.onset.SpeedRet1sThreshold {
		fired[domain.AxisSpeed] = true
	}
	if rec.ZVol1s > s.onset.ParticipationZVolThreshold {
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
			Ret1s:  rec.Ret1s,
			ZVol1s: rec.ZVol1s,
			Spread: rec.Spread,
		},
	}, true
}
