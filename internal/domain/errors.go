package domain

import "errors"

// Core error taxonomy. All per-tick errors are recovered locally by the
// caller; only ErrConfig is fatal.
var (
	// ErrBadInputTick: non-finite fields, non-positive price, or ts
	// regression within a symbol. Recovery: skip the tick, emit a
	// diagnostic, continue.
	ErrBadInputTick = errors.New("bad input tick")

	// ErrFeatureUnavailable: a derived feature is undefined at a given
	// tick (e.g. spread with zero mid). Recovery: local; the affected
	// axis simply does not fire.
	ErrFeatureUnavailable = errors.New("feature unavailable")

	// ErrEmptyPreWindow: a candidate's pre-window has no samples.
	// Recovery: drop the candidate silently, emit a low-severity
	// diagnostic.
	ErrEmptyPreWindow = errors.New("empty pre-window")

	// ErrConfig: out-of-range or structurally invalid configuration at
	// construction time. Recovery: none; refuse to construct the
	// pipeline.
	ErrConfig = errors.New("invalid configuration")
)
