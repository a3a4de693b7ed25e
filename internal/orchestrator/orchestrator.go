// Package orchestrator runs the full judgment pipeline: loop selection,
// reinforcement override, execution, metric scoring, audit emission and the
// learning side-channel. One Run call is one judgment.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"echojudge/internal/learning"
	"echojudge/internal/logging"
	"echojudge/internal/loops"
	"echojudge/internal/reinforcement"
	"echojudge/internal/signature"
)

// Selection methods recorded on an outcome.
const (
	MethodSignature     = "signature"
	MethodReinforcement = "reinforcement"
)

// Metrics scores one execution.
type Metrics struct {
	SuccessRate     float64 `json:"success_rate"`     // 1 or 0 for a single run
	ConfidenceScore float64 `json:"confidence_score"` // outcome quality, [0,1]
	AdaptationScore float64 `json:"adaptation_score"` // signature-loop fit x success
}

// Outcome is the result of one judgment.
type Outcome struct {
	RequestID       string        `json:"request_id"`
	SignatureID     string        `json:"signature_id"`
	SelectedLoop    string        `json:"selected_loop"`
	SelectionMethod string        `json:"selection_method"`
	Success         bool          `json:"success"`
	PhasesExecuted  []string      `json:"phases_executed"`
	Output          loops.Output  `json:"output,omitempty"`
	Duration        time.Duration `json:"duration"`
	ErrorText       string        `json:"error_text,omitempty"`
	Metrics         Metrics       `json:"metrics"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Options tunes the orchestrator's thresholds.
type Options struct {
	HistorySize       int           // bounded execution history
	OverrideThreshold float64       // learned value needed to override the selector
	PoorConfidence    float64       // below this, flag for learning
	PoorAdaptation    float64       // below this, flag for learning
	PoorDuration      time.Duration // above this, flag for learning
}

// DefaultOptions returns the reference thresholds.
func DefaultOptions() Options {
	return Options{
		HistorySize:       1000,
		OverrideThreshold: 0.7,
		PoorConfidence:    0.6,
		PoorAdaptation:    0.5,
		PoorDuration:      10 * time.Second,
	}
}

// pendingUpdate is a remembered (state, action, reward) from a completed
// judgment, applied one step later so the value table always lags the
// outcome it scored. Every call queues exactly one; none are dropped.
type pendingUpdate struct {
	state  reinforcement.StateKey
	loopID string
	reward float64
}

// Orchestrator wires the selector, reinforcement engine and executor into
// the judgment pipeline. Safe for concurrent Run calls.
type Orchestrator struct {
	opts         Options
	executor     *loops.Executor
	selector     *signature.Selector
	engine       *reinforcement.Engine
	observations *learning.History
	meta         logging.MetaLogger
	evolution    logging.EvolutionLogger
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string

	mu             sync.Mutex
	pending        []pendingUpdate
	history        []Outcome
	perLoop        map[string]*aggregate
	perSignature   map[string]*aggregate
	learningErrors int
}

type aggregate struct {
	executions    int
	successes     int
	confidenceSum float64
}

// New wires an orchestrator. meta and evolution may be nil; observations may
// be nil when the learning side-channel is unused.
func New(opts Options, executor *loops.Executor, selector *signature.Selector, engine *reinforcement.Engine, observations *learning.History, meta logging.MetaLogger, evolution logging.EvolutionLogger, logger *zap.Logger) *Orchestrator {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultOptions().HistorySize
	}
	if opts.OverrideThreshold == 0 {
		opts.OverrideThreshold = DefaultOptions().OverrideThreshold
	}
	if meta == nil {
		meta = logging.NopSink{}
	}
	if evolution == nil {
		evolution = logging.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:         opts,
		executor:     executor,
		selector:     selector,
		engine:       engine,
		observations: observations,
		meta:         meta,
		evolution:    evolution,
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return "jdg_" + uuid.NewString() },
		perLoop:      make(map[string]*aggregate),
		perSignature: make(map[string]*aggregate),
	}
}

// SetClock overrides the clock for deterministic tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Run executes one judgment. Selection and execution failures surface as a
// failed outcome; side-step failures (audit, learning) are swallowed and
// counted.
func (o *Orchestrator) Run(ctx context.Context, inputText, signatureID string, jc *loops.JudgmentContext, learningEnabled bool) Outcome {
	// Work on a copy; the caller's context stays read-only.
	local := loops.JudgmentContext{}
	if jc != nil {
		local = *jc
	}
	local.InputText = inputText
	jc = &local
	requestID := o.newID()
	start := o.now()

	// Settle the previous judgment's reward before consulting the table.
	if learningEnabled {
		o.applyPending()
	}

	loopID := o.selector.SelectLoop(signatureID, jc)
	method := MethodSignature
	state := reinforcement.StateFor(signatureID, jc)

	if learningEnabled {
		if rec, ok := o.engine.Recommend(state, o.executor.Catalog().IDs()); ok {
			if !rec.Explored && rec.Value > o.opts.OverrideThreshold {
				loopID = rec.LoopID
				method = MethodReinforcement
			}
		}
	}

	result := o.executor.Execute(ctx, loopID, jc)

	sensitivity := o.selector.Sensitivity(signatureID, loopID)
	metrics := scoreExecution(result, sensitivity)

	outcome := Outcome{
		RequestID:       requestID,
		SignatureID:     signatureID,
		SelectedLoop:    result.LoopID,
		SelectionMethod: method,
		Success:         result.Success,
		PhasesExecuted:  result.PhasesCompleted,
		Output:          result.Output,
		Duration:        result.Duration,
		ErrorText:       result.ErrorText,
		Metrics:         metrics,
		Timestamp:       start,
	}

	reason := failureReason(result, jc, metrics, o.opts)

	o.sideStep("audit", func() error {
		return o.meta.LogJudgment(logging.AuditRecord{
			Timestamp:       start,
			RequestID:       requestID,
			SignatureID:     signatureID,
			LoopID:          result.LoopID,
			SelectionMethod: method,
			Success:         result.Success,
			FailureReason:   reason,
			Confidence:      metrics.ConfidenceScore,
			AdaptationScore: metrics.AdaptationScore,
			Duration:        result.Duration,
		})
	})

	if learningEnabled {
		reward := reinforcement.Reward(reinforcement.NeutralFeedback(result.Success, result.Duration))
		o.mu.Lock()
		o.pending = append(o.pending, pendingUpdate{state: state, loopID: result.LoopID, reward: reward})
		o.mu.Unlock()
	}

	if reason != "" && o.observations != nil {
		o.sideStep("observation", func() error {
			o.observations.Append(learning.Observation{
				RequestID:    requestID,
				SignatureID:  signatureID,
				LoopID:       result.LoopID,
				Reason:       reason,
				ContextShape: contextShape(jc),
				Timestamp:    start,
			})
			return nil
		})
	}

	o.record(outcome)
	return outcome
}

// Flush settles any pending reinforcement update. Call before snapshotting
// the value table.
func (o *Orchestrator) Flush() {
	o.applyPending()
}

// LearningErrors reports how many side-steps have failed since start.
func (o *Orchestrator) LearningErrors() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.learningErrors
}

// applyPending drains the one-step lookback queue into the value table.
func (o *Orchestrator) applyPending() {
	o.mu.Lock()
	queued := o.pending
	o.pending = nil
	o.mu.Unlock()
	for _, p := range queued {
		o.engine.Update(p.state, p.loopID, p.reward)
	}
}

// sideStep runs a best-effort side action; a panic or error is logged and
// counted, never propagated.
func (o *Orchestrator) sideStep(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			o.noteLearningError(name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		o.noteLearningError(name, err)
	}
}

func (o *Orchestrator) noteLearningError(name string, err error) {
	o.mu.Lock()
	o.learningErrors++
	o.mu.Unlock()
	o.logger.Warn("judgment side-step failed", zap.String("step", name), zap.Error(err))
}

func (o *Orchestrator) record(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.history = append(o.history, out)
	if len(o.history) > o.opts.HistorySize {
		o.history = o.history[len(o.history)-o.opts.HistorySize:]
	}

	bump(o.perLoop, out.SelectedLoop, out)
	bump(o.perSignature, out.SignatureID, out)
}

func bump(table map[string]*aggregate, key string, out Outcome) {
	agg := table[key]
	if agg == nil {
		agg = &aggregate{}
		table[key] = agg
	}
	agg.executions++
	if out.Success {
		agg.successes++
	}
	agg.confidenceSum += out.Metrics.ConfidenceScore
}

// scoreExecution derives the metric triple from a loop result. Confidence
// starts from the success base and loses ground for slow runs; adaptation is
// the signature-loop fit gated on success.
func scoreExecution(result loops.Result, sensitivity float64) Metrics {
	confidence := 0.3
	if result.Success {
		confidence = 0.9
	}
	if result.Duration > 5*time.Second {
		confidence -= 0.2
	} else if result.Duration > 2*time.Second {
		confidence -= 0.1
	}
	if confidence < 0 {
		confidence = 0
	}

	m := Metrics{ConfidenceScore: confidence}
	if result.Success {
		m.SuccessRate = 1
		m.AdaptationScore = sensitivity
	}
	return m
}

// failureReason maps a poor outcome to the learning vocabulary. Empty means
// the judgment performed acceptably.
func failureReason(result loops.Result, jc *loops.JudgmentContext, m Metrics, opts Options) string {
	if !result.Success {
		switch {
		case strings.Contains(result.ErrorText, learning.ReasonLoopTimeout):
			return learning.ReasonLoopTimeout
		case jc.EmotionalIntensity > 0.8:
			return learning.ReasonEmotionalDiscord
		case jc.MetaCognitionNeeded:
			return learning.ReasonMetaConfusion
		default:
			return learning.ReasonJudgmentFailure
		}
	}
	switch {
	case m.ConfidenceScore < opts.PoorConfidence:
		return learning.ReasonLowConfidence
	case m.AdaptationScore < opts.PoorAdaptation:
		return learning.ReasonStrategyMismatch
	case opts.PoorDuration > 0 && result.Duration > opts.PoorDuration:
		return learning.ReasonLoopTimeout
	}
	return ""
}

// contextShape renders the bucketized context for pattern grouping.
func contextShape(jc *loops.JudgmentContext) string {
	return fmt.Sprintf("cx:%s|un:%s|em:%s",
		reinforcement.Bucketize(jc.Complexity),
		reinforcement.Bucketize(jc.Uncertainty),
		reinforcement.Bucketize(jc.EmotionalIntensity))
}
