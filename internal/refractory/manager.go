// Package refractory implements the Refractory Manager: a per-symbol
// cooldown that suppresses new candidate emission for duration_s seconds
// after a confirmation. Grounded closely on
// _examples/original_source/onset_detection/src/detection/refractory_manager.py's
// allow_candidate/update_confirm pair, rebuilt as a pure map-and-compare
// with no I/O, per spec.md section 4.5.
package refractory

import "onset-detect/internal/config"

// Manager is a pure map-and-compare cooldown tracker. It has no failure
// modes.
type Manager struct {
	durationMs      int64
	extendOnConfirm bool
	blockUntil      map[string]int64
}

// New constructs a Refractory Manager.
func New(cfg config.RefractoryConfig) *Manager {
	return &Manager{
		durationMs:      int64(cfg.DurationS) * 1000,
		extendOnConfirm: cfg.ExtendOnConfirm,
		blockUntil:      make(map[string]int64),
	}
}

// IsBlocked reports whether ts falls within the symbol's current cooldown
// window. A ts exactly equal to the blocked-until deadline is allowed (not
// blocked), per spec.md section 8's refractory edge boundary behavior.
func (m *Manager) IsBlocked(symbol string, ts int64) bool {
	return ts < m.blockUntil[symbol]
}

// BlockedUntil returns the current cooldown deadline for symbol (0 if
// never confirmed).
func (m *Manager) BlockedUntil(symbol string) int64 {
	return m.blockUntil[symbol]
}

// OnConfirm sets the cooldown deadline to ts + duration_s*1000. If
// ExtendOnConfirm is set and a later confirmation arrives while already
// blocked, the deadline is extended rather than shortened.
func (m *Manager) OnConfirm(symbol string, ts int64) {
	newDeadline := ts + m.durationMs
	if existing, ok := m.blockUntil[symbol]; ok && m.extendOnConfirm {
		if newDeadline > existing {
			m.blockUntil[symbol] = newDeadline
		}
		return
	}
	m.blockUntil[symbol] = newDeadline
}

// OnReject is a diagnostic no-op: it records nothing mutable, matching the
// manager's "pure map-and-compare" failure-free contract.
func (m *Manager) OnReject(symbol string, candidateTS int64, blockedUntilTS int64) {}
