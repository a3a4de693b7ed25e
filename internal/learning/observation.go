// Package learning implements the adaptive learning engine: it scans a
// rolling window of judgment observations for recurring failure patterns,
// generates tiered corrective actions and applies them to signature profiles
// under a per-signature cooldown.
package learning

import (
	"sync"
	"time"
)

// Known failure vocabulary. Only observations whose reason is in this set
// participate in pattern detection.
const (
	ReasonLowConfidence    = "low_confidence"
	ReasonJudgmentFailure  = "judgment_failure"
	ReasonStrategyMismatch = "strategy_mismatch"
	ReasonEmotionalDiscord = "emotional_discord"
	ReasonMetaConfusion    = "meta_confusion"
	ReasonLoopTimeout      = "loop_timeout"
)

var failureVocabulary = map[string]bool{
	ReasonLowConfidence:    true,
	ReasonJudgmentFailure:  true,
	ReasonStrategyMismatch: true,
	ReasonEmotionalDiscord: true,
	ReasonMetaConfusion:    true,
	ReasonLoopTimeout:      true,
}

// IsFailureReason reports whether reason belongs to the known vocabulary.
func IsFailureReason(reason string) bool {
	return failureVocabulary[reason]
}

// Observation is one evolution-candidate record appended by the orchestrator
// when a judgment performed poorly.
type Observation struct {
	RequestID    string    `json:"request_id"`
	SignatureID  string    `json:"signature_id"`
	LoopID       string    `json:"loop_id"`
	Reason       string    `json:"reason"`
	ContextShape string    `json:"context_shape"` // e.g. "cx:high|un:low|em:medium"
	Timestamp    time.Time `json:"timestamp"`
}

// History is the bounded, append-only observation buffer shared between the
// orchestrator (writer) and the learning engine (reader). Appends are
// serialized; reads copy and never block writers for long.
type History struct {
	mu    sync.RWMutex
	cap   int
	items []Observation
}

// NewHistory creates a buffer that keeps at most capacity observations,
// dropping the oldest.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1000
	}
	return &History{cap: capacity}
}

// Append adds an observation, evicting the oldest when full.
func (h *History) Append(obs Observation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, obs)
	if len(h.items) > h.cap {
		h.items = h.items[len(h.items)-h.cap:]
	}
}

// Recent returns a copy of all observations at or after since.
func (h *History) Recent(since time.Time) []Observation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Observation, 0, len(h.items))
	for _, obs := range h.items {
		if !obs.Timestamp.Before(since) {
			out = append(out, obs)
		}
	}
	return out
}

// Len returns the current buffer size.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
