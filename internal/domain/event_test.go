package domain

import (
	"encoding/json"
	"testing"
)

func TestEventTSAndSymbol(t *testing.T) {
	cases := []struct {
		name   string
		event  Event
		wantTS int64
		wantS  string
	}{
		{
			name: "candidate",
			event: Event{
				Type:      EventTypeCandidate,
				Candidate: &CandidateEvent{TS: 100, Symbol: "005930"},
			},
			wantTS: 100,
			wantS:  "005930",
		},
		{
			name: "confirmed",
			event: Event{
				Type:      EventTypeConfirmed,
				Confirmed: &ConfirmedEvent{TS: 250, Symbol: "000660", ConfirmedFromTS: 200},
			},
			wantTS: 250,
			wantS:  "000660",
		},
		{
			name: "refractory rejected",
			event: Event{
				Type:               EventTypeRejectedRefractory,
				RefractoryRejected: &RefractoryRejectedEvent{TS: 400, Symbol: "035420", CandidateTS: 390},
			},
			wantTS: 400,
			wantS:  "035420",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.event.TS(); got != tc.wantTS {
				t.Errorf("TS() = %d, want %d", got, tc.wantTS)
			}
			if got := tc.event.Symbol(); got != tc.wantS {
				t.Errorf("Symbol() = %q, want %q", got, tc.wantS)
			}
		})
	}
}

func TestConfirmAxisSetCount(t *testing.T) {
	s := ConfirmAxisSet{AxisPrice: true, AxisVolume: false, AxisFriction: true}
	if got := s.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestConfirmAxisSetSliceOrder(t *testing.T) {
	s := ConfirmAxisSet{AxisFriction: true, AxisPrice: true}
	got := s.Slice()
	want := []ConfirmAxis{AxisPrice, AxisFriction}
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCandidateEventMarshalJSONUsesSnakeCaseWireShape(t *testing.T) {
	ev := Event{
		Type: EventTypeCandidate,
		Candidate: &CandidateEvent{
			TS:          1000,
			Symbol:      "005930",
			Score:       2.5,
			TriggerAxes: []CandidateAxis{AxisSpeed},
			Evidence:    CandidateEvidence{Ret1s: 0.01, ZVol1s: 3.2, Spread: 0.05},
		},
	}

	data, err := json.Marshal(&ev)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got["event_type"] != string(EventTypeCandidate) {
		t.Errorf("event_type = %v, want %q", got["event_type"], EventTypeCandidate)
	}
	if _, present := got["type"]; present {
		t.Error("unexpected stray \"type\" key; wire shape must use event_type")
	}
	if _, present := got["data"]; present {
		t.Error("payload must be flattened, not nested under \"data\"")
	}
	if got["ts"] != 1000.0 || got["symbol"] != "005930" || got["score"] != 2.5 {
		t.Errorf("got = %+v, missing or wrong top-level fields", got)
	}
	evidence, ok := got["evidence"].(map[string]interface{})
	if !ok {
		t.Fatalf("evidence = %v, want an object", got["evidence"])
	}
	if evidence["ret_1s"] != 0.01 || evidence["z_vol_1s"] != 3.2 || evidence["spread"] != 0.05 {
		t.Errorf("evidence = %+v, want snake_case ret_1s/z_vol_1s/spread", evidence)
	}
}

func TestConfirmedEventMarshalJSONUsesSnakeCaseWireShape(t *testing.T) {
	ev := Event{
		Type: EventTypeConfirmed,
		Confirmed: &ConfirmedEvent{
			TS:              1500,
			Symbol:          "005930",
			ConfirmedFromTS: 1000,
			SatisfiedAxes:   []ConfirmAxis{AxisPrice, AxisVolume},
			OnsetStrength:   0.8,
			Evidence: ConfirmedEvidence{
				DeltaRet: 0.02, DeltaZVol: 1.1, DeltaSpread: -0.01,
				PreRet: 0.001, PreZVol: 0.2, PreSpread: 0.06, PreMicropriceSlope: 0.0,
				PostRet: 0.021, PostZVol: 1.3, PostSpread: 0.05,
			},
		},
	}

	data, err := json.Marshal(&ev)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got["confirmed_from_ts"] != 1000.0 {
		t.Errorf("confirmed_from_ts = %v, want 1000", got["confirmed_from_ts"])
	}
	if got["onset_strength"] != 0.8 {
		t.Errorf("onset_strength = %v, want 0.8", got["onset_strength"])
	}
	evidence, ok := got["evidence"].(map[string]interface{})
	if !ok {
		t.Fatalf("evidence = %v, want an object", got["evidence"])
	}
	for _, key := range []string{"delta_ret", "delta_zvol", "delta_spread", "pre_ret", "pre_zvol", "pre_spread", "pre_microprice_slope", "post_ret", "post_zvol", "post_spread"} {
		if _, present := evidence[key]; !present {
			t.Errorf("evidence missing snake_case key %q: %+v", key, evidence)
		}
	}
}

func TestRefractoryRejectedEventMarshalJSONUsesSnakeCaseWireShape(t *testing.T) {
	ev := Event{
		Type:               EventTypeRejectedRefractory,
		RefractoryRejected: &RefractoryRejectedEvent{TS: 2000, Symbol: "005930", CandidateTS: 1800, BlockedUntilTS: 5000},
	}

	data, err := json.Marshal(&ev)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["candidate_ts"] != 1800.0 || got["blocked_until_ts"] != 5000.0 {
		t.Errorf("got = %+v, want candidate_ts=1800 blocked_until_ts=5000", got)
	}
}

func TestAxisAvailable(t *testing.T) {
	f := &FeatureRecord{HasSpread: false}
	if !f.AxisAvailable(AxisPrice) {
		t.Error("AxisPrice should always be available")
	}
	if !f.AxisAvailable(AxisVolume) {
		t.Error("AxisVolume should always be available")
	}
	if f.AxisAvailable(AxisFriction) {
		t.Error("AxisFriction should be unavailable without a valid spread")
	}
	f.HasSpread = true
	if !f.AxisAvailable(AxisFriction) {
		t.Error("AxisFriction should be available once HasSpread is true")
	}
}
