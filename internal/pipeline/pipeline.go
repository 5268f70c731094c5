// Package pipeline wires the five core components into the unidirectional
// per-symbol pipeline described by spec.md section 2: Feature Engine -> CPD
// Gate -> Candidate Detector -> Confirm Detector -> Refractory Manager.
// Construction follows the builder/Options style of
// solana-token-lab/internal/orchestrator/orchestrator.go, generalized from
// store-interface wiring to detection-stage wiring.
package pipeline

import (
	"fmt"

	"onset-detect/internal/candidate"
	"onset-detect/internal/confirm"
	"onset-detect/internal/cpd"
	"onset-detect/internal/config"
	"onset-detect/internal/domain"
	"onset-detect/internal/features"
	"onset-detect/internal/refractory"
)

// StrengthScorer is the optional post-confirmation filter named in spec.md
// section 9. Score returns false to veto a confirmation's emission
// entirely; the default IdentityScorer always returns true.
type StrengthScorer interface {
	Score(ev *domain.ConfirmedEvent) bool
}

// IdentityScorer is the default StrengthScorer: it never vetoes.
type IdentityScorer struct{}

func (IdentityScorer) Score(*domain.ConfirmedEvent) bool { return true }

// Pipeline is parametric over two strategy capabilities, per spec.md
// section 9: an optional ChangePointGate (cpd.Gate) and an optional
// StrengthScorer. Implementations are selected at construction; runtime
// dispatch is not required.
type Pipeline struct {
	features   *features.Engine
	cpdGate    *cpd.Gate
	candidates *candidate.Detector
	confirms   *confirm.Detector
	refract    *refractory.Manager
	scorer     StrengthScorer
}

// Options configures pipeline construction.
type Options struct {
	Config config.Config
	Scorer StrengthScorer // defaults to IdentityScorer if nil
}

// New constructs a Pipeline. Returns domain.ErrConfig if cfg fails
// validation; construction never succeeds with invalid configuration.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	scorer := opts.Scorer
	if scorer == nil {
		scorer = IdentityScorer{}
	}

	refract := refractory.New(opts.Config.Refractory)

	var strategies []candidate.Strategy
	for _, name := range opts.Config.Strategies.Enabled {
		switch name {
		case "sharp":
			strategies = append(strategies, candidate.NewSharpStrategy(opts.Config.Detection))
		case "gradual":
			strategies = append(strategies, candidate.NewGradualStrategy(opts.Config.Detection))
		default:
			return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrConfig, name)
		}
	}

	return &Pipeline{
		features:   features.New(opts.Config.Features),
		cpdGate:    cpd.New(opts.Config.CPD),
		candidates: candidate.New(opts.Config.Detection, strategies, refract),
		confirms:   confirm.New(opts.Config.Confirm, refract),
		refract:    refract,
		scorer:     scorer,
	}, nil
}

// Push advances the pipeline by one tick, returning the events emitted (0
// to 2: spec.md guarantees at most one Candidate, at most one Confirmed,
// at most one RefractoryRejected per tick, and never a Candidate and a
// RefractoryRejected on the same tick). Returns domain.ErrBadInputTick
// (wrapped) if tick fails Feature Engine validation; the tick is skipped
// and no state is corrupted.
//
// The CPD Gate, when enabled, filters only Candidate Detector evaluation.
// The Confirm Detector always receives the full feature-record stream
// regardless of gate state, since its post-window persistence count and
// window deadline are defined against wall-clock record arrival, not
// against a gated subsequence; gating it would silently shrink
// persistent_n's effective window. This mirrors the explicit
// default-disabled equivalence test named in spec.md section 4.2.
func (p *Pipeline) Push(tick domain.Tick) ([]domain.Event, error) {
	rec, err := p.features.Push(tick)
	if err != nil {
		return nil, err
	}

	passes := p.cpdGate.UpdateAndCheck(rec)

	var events []domain.Event

	if passes {
		result := p.candidates.Evaluate(rec)
		switch {
		case result.Rejected != nil:
			events = append(events, domain.Event{
				Type:               domain.EventTypeRejectedRefractory,
				RefractoryRejected: result.Rejected,
			})
		case result.Candidate != nil:
			events = append(events, domain.Event{
				Type:      domain.EventTypeCandidate,
				Candidate: result.Candidate,
			})
			p.confirms.AddCandidate(*result.Candidate)
		}
	}

	if confirmed := p.confirms.Push(rec); confirmed != nil {
		if p.scorer.Score(confirmed) {
			events = append(events, domain.Event{
				Type:      domain.EventTypeConfirmed,
				Confirmed: confirmed,
			})
		}
	}

	return events, nil
}
