// Package logging provides the collaborator sinks the judgment core emits
// into: a meta-log of audit records keyed by timestamp and an evolution-event
// log of structured "why" records. Both are best-effort consumers; the
// judgment pipeline never fails because a sink did.
package logging

import (
	"time"

	"go.uber.org/zap"
)

// AuditRecord is one judgment's audit trail entry.
type AuditRecord struct {
	Timestamp       time.Time     `json:"timestamp"`
	RequestID       string        `json:"request_id"`
	SignatureID     string        `json:"signature_id"`
	LoopID          string        `json:"loop_id"`
	SelectionMethod string        `json:"selection_method"`
	Success         bool          `json:"success"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	Confidence      float64       `json:"confidence"`
	AdaptationScore float64       `json:"adaptation_score"`
	Duration        time.Duration `json:"duration"`
}

// EvolutionEvent is a structured "why" record emitted when the system
// changes itself: reinforcement updates, signature adaptations.
type EvolutionEvent struct {
	Event              string    `json:"event"`
	Tags               []string  `json:"tags,omitempty"`
	Cause              []string  `json:"cause,omitempty"`
	Effect             []string  `json:"effect,omitempty"`
	Resolution         string    `json:"resolution,omitempty"`
	SignatureID        string    `json:"signature_id,omitempty"`
	AdaptationStrength float64   `json:"adaptation_strength,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// MetaLogger accepts audit records.
type MetaLogger interface {
	LogJudgment(rec AuditRecord) error
}

// EvolutionLogger accepts evolution events.
type EvolutionLogger interface {
	LogEvolution(ev EvolutionEvent) error
}

// =============================================================================
// ZAP IMPLEMENTATIONS
// =============================================================================

// ZapSink implements both sinks on a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps a zap logger as the meta/evolution sinks.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("meta")}
}

// LogJudgment writes the audit record as a structured entry.
func (s *ZapSink) LogJudgment(rec AuditRecord) error {
	s.logger.Info("judgment",
		zap.Time("ts", rec.Timestamp),
		zap.String("request_id", rec.RequestID),
		zap.String("signature", rec.SignatureID),
		zap.String("loop", rec.LoopID),
		zap.String("selection", rec.SelectionMethod),
		zap.Bool("success", rec.Success),
		zap.String("failure_reason", rec.FailureReason),
		zap.Float64("confidence", rec.Confidence),
		zap.Float64("adaptation_score", rec.AdaptationScore),
		zap.Duration("duration", rec.Duration),
	)
	return nil
}

// LogEvolution writes the evolution event as a structured entry.
func (s *ZapSink) LogEvolution(ev EvolutionEvent) error {
	s.logger.Info("evolution",
		zap.String("event", ev.Event),
		zap.Strings("tags", ev.Tags),
		zap.Strings("cause", ev.Cause),
		zap.Strings("effect", ev.Effect),
		zap.String("resolution", ev.Resolution),
		zap.String("signature", ev.SignatureID),
		zap.Float64("adaptation_strength", ev.AdaptationStrength),
		zap.Time("ts", ev.Timestamp),
	)
	return nil
}

// =============================================================================
// NO-OP IMPLEMENTATIONS (tests, learning disabled)
// =============================================================================

// NopSink drops everything.
type NopSink struct{}

func (NopSink) LogJudgment(AuditRecord) error     { return nil }
func (NopSink) LogEvolution(EvolutionEvent) error { return nil }
