package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"onset-detect/internal/domain"
)

// ComputeEventID computes a deterministic identifier for an onset-detection
// event, for storage dedup and cross-run replay comparison. Formula:
// SHA256(type|symbol|ts|reference_ts), where reference_ts is the
// candidate's ts for Confirmed/RefractoryRejected events and ts itself for
// Candidate events. Grounded on ComputeCandidateID's pipe-joined field
// hashing, generalized from a Solana (mint, pool, source, tx, event_index,
// slot) key to the onset-detection (type, symbol, ts, reference_ts) key.
func ComputeEventID(ev *domain.Event) string {
	var referenceTS int64
	switch ev.Type {
	case domain.EventTypeCandidate:
		referenceTS = ev.Candidate.TS
	case domain.EventTypeConfirmed:
		referenceTS = ev.Confirmed.ConfirmedFromTS
	case domain.EventTypeRejectedRefractory:
		referenceTS = ev.RefractoryRejected.CandidateTS
	}

	data := fmt.Sprintf("%s|%s|%d|%d", string(ev.Type), ev.Symbol(), ev.TS(), referenceTS)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
