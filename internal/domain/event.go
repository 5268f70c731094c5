package domain

import "encoding/json"

// EventType identifies which variant of the onset-detection output tagged
// union a given Event carries.
type EventType string

const (
	EventTypeCandidate          EventType = "onset_candidate"
	EventTypeConfirmed          EventType = "onset_confirmed"
	EventTypeRejectedRefractory EventType = "onset_rejected_refractory"
)

// CandidateEvent is emitted when the Candidate Detector observes at least
// min_axes_required fired axes on a single feature record.
type CandidateEvent struct {
	TS          int64             `json:"ts"`
	Symbol      string            `json:"symbol"`
	Score       float64           `json:"score"`
	TriggerAxes []CandidateAxis   `json:"trigger_axes"`
	Evidence    CandidateEvidence `json:"evidence"`
}

// CandidateEvidence carries the raw values that drove the axis decisions,
// for downstream logging/analysis.
type CandidateEvidence struct {
	Ret1s  float64 `json:"ret_1s"`
	ZVol1s float64 `json:"z_vol_1s"`
	Spread float64 `json:"spread"`
}

// ConfirmedEvent is emitted when a candidate achieves delta-improvement
// across the required axes for persistent_n consecutive records.
type ConfirmedEvent struct {
	TS              int64             `json:"ts"` // earliest-hit time within the confirmation window
	Symbol          string            `json:"symbol"`
	ConfirmedFromTS int64             `json:"confirmed_from_ts"` // the candidate's ts
	SatisfiedAxes   []ConfirmAxis     `json:"satisfied_axes"`
	OnsetStrength   float64           `json:"onset_strength"`
	Evidence        ConfirmedEvidence `json:"evidence"`
}

// ConfirmedEvidence carries the delta measurements used to confirm.
type ConfirmedEvidence struct {
	DeltaRet           float64 `json:"delta_ret"`
	DeltaZVol          float64 `json:"delta_zvol"`
	DeltaSpread        float64 `json:"delta_spread"`
	PreRet             float64 `json:"pre_ret"`
	PreZVol            float64 `json:"pre_zvol"`
	PreSpread          float64 `json:"pre_spread"`
	PreMicropriceSlope float64 `json:"pre_microprice_slope"`
	PostRet            float64 `json:"post_ret"`
	PostZVol           float64 `json:"post_zvol"`
	PostSpread         float64 `json:"post_spread"`
}

// RefractoryRejectedEvent is emitted when a candidate is suppressed because
// its symbol is within a post-confirmation cooldown window.
type RefractoryRejectedEvent struct {
	TS             int64  `json:"ts"`
	Symbol         string `json:"symbol"`
	CandidateTS    int64  `json:"candidate_ts"`
	BlockedUntilTS int64  `json:"blocked_until_ts"`
}

// Event is a tagged union of Candidate, Confirmed, RefractoryRejected.
// Exactly one of the pointer fields is non-nil, selected by Type.
type Event struct {
	Type              EventType
	Candidate         *CandidateEvent
	Confirmed         *ConfirmedEvent
	RefractoryRejected *RefractoryRejectedEvent
}

// TS returns the timestamp common to every event variant.
func (e *Event) TS() int64 {
	switch e.Type {
	case EventTypeCandidate:
		return e.Candidate.TS
	case EventTypeConfirmed:
		return e.Confirmed.TS
	case EventTypeRejectedRefractory:
		return e.RefractoryRejected.TS
	default:
		return 0
	}
}

// Symbol returns the symbol common to every event variant.
func (e *Event) Symbol() string {
	switch e.Type {
	case EventTypeCandidate:
		return e.Candidate.Symbol
	case EventTypeConfirmed:
		return e.Confirmed.Symbol
	case EventTypeRejectedRefractory:
		return e.RefractoryRejected.Symbol
	default:
		return ""
	}
}

// MarshalJSON flattens the tagged union into the single-object wire shape
// spec.md section 6 names: the variant's own fields (ts, symbol, and its
// variant-specific fields) alongside a top-level event_type discriminator,
// rather than nesting the variant under a separate key.
func (e *Event) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch e.Type {
	case EventTypeCandidate:
		payload = e.Candidate
	case EventTypeConfirmed:
		payload = e.Confirmed
	case EventTypeRejectedRefractory:
		payload = e.RefractoryRejected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}

	typeJSON, err := json.Marshal(string(e.Type))
	if err != nil {
		return nil, err
	}
	flat["event_type"] = typeJSON

	return json.Marshal(flat)
}
