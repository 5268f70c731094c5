package candidate

import "sort"

// SpreadBaseline tracks the trailing median spread over baseline_window_s
// seconds, used by the friction axis of the Candidate Detector. The median
// is the middle value for an odd sample count and the mean of the two
// middle values for an even count.
type SpreadBaseline struct {
	windowMs int64
	samples  []spreadSample
}

type spreadSample struct {
	ts     int64
	spread float64
}

// NewSpreadBaseline constructs a tracker with a window of windowS seconds.
func NewSpreadBaseline(windowS int) *SpreadBaseline {
	return &SpreadBaseline{windowMs: int64(windowS) * 1000}
}

// Push records a new spread observation, if defined, and prunes samples
// older than the window.
func (b *SpreadBaseline) Push(ts int64, spread float64, has bool) {
	if has {
		b.samples = append(b.samples, spreadSample{ts: ts, spread: spread})
	}
	cutoff := ts - b.windowMs
	i := 0
	for i < len(b.samples) && b.samples[i].ts < cutoff {
		i++
	}
	if i > 0 {
		b.samples = append(b.samples[:0], b.samples[i:]...)
	}
}

// Median returns the current trailing median spread and whether any
// samples are available.
func (b *SpreadBaseline) Median() (float64, bool) {
	if len(b.samples) == 0 {
		return 0, false
	}
	vals := make([]float64, len(b.samples))
	for i, s := range b.samples {
		vals[i] = s.spread
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2], true
	}
	return (vals[n/2-1] + vals[n/2]) / 2, true
}
