package learning

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// FAILURE PATTERN DETECTION
// =============================================================================

// FailurePattern is a recurring cluster of failed outcomes sharing signature,
// failure reason and context shape. Rebuilt from scratch every analysis
// cycle; the observation window is bounded, so the rebuild stays cheap.
type FailurePattern struct {
	ID           string    `json:"id"`
	SignatureID  string    `json:"signature_id"`
	Reason       string    `json:"reason"`
	ContextShape string    `json:"context_shape"`
	Frequency    int       `json:"frequency"`
	Severity     float64   `json:"severity"` // min(1, 0.1*frequency + 0.3*recent24h)
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	RequestIDs   []string  `json:"request_ids"`
}

type patternKey struct {
	signatureID  string
	reason       string
	contextShape string
}

// detectPatterns groups windowed observations into failure patterns. Groups
// below minFrequency are discarded. Results are ordered by severity, then
// frequency, descending.
func detectPatterns(observations []Observation, minFrequency int, now time.Time) []FailurePattern {
	groups := make(map[patternKey][]Observation)
	for _, obs := range observations {
		if !IsFailureReason(obs.Reason) {
			continue
		}
		key := patternKey{obs.SignatureID, obs.Reason, obs.ContextShape}
		groups[key] = append(groups[key], obs)
	}

	dayAgo := now.Add(-24 * time.Hour)
	patterns := make([]FailurePattern, 0, len(groups))
	for key, events := range groups {
		if len(events) < minFrequency {
			continue
		}

		p := FailurePattern{
			ID:           fmt.Sprintf("pattern_%s_%s_%s", key.signatureID, key.reason, now.Format("20060102_1504")),
			SignatureID:  key.signatureID,
			Reason:       key.reason,
			ContextShape: key.contextShape,
			Frequency:    len(events),
			FirstSeen:    events[0].Timestamp,
			LastSeen:     events[0].Timestamp,
		}
		recent := 0
		for _, e := range events {
			if e.Timestamp.Before(p.FirstSeen) {
				p.FirstSeen = e.Timestamp
			}
			if e.Timestamp.After(p.LastSeen) {
				p.LastSeen = e.Timestamp
			}
			if !e.Timestamp.Before(dayAgo) {
				recent++
			}
			p.RequestIDs = append(p.RequestIDs, e.RequestID)
		}
		p.Severity = severity(p.Frequency, recent)
		patterns = append(patterns, p)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Severity != patterns[j].Severity {
			return patterns[i].Severity > patterns[j].Severity
		}
		return patterns[i].Frequency > patterns[j].Frequency
	})
	return patterns
}

// severity scores a pattern from its total frequency and its last-24h burst.
func severity(frequency, recent24h int) float64 {
	s := 0.1*float64(frequency) + 0.3*float64(recent24h)
	if s > 1 {
		return 1
	}
	return s
}
