package learning

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"echojudge/internal/logging"
	"echojudge/internal/signature"
)

// =============================================================================
// ADAPTIVE LEARNING ENGINE
// =============================================================================

// Metrics is the per-signature performance snapshot taken before and after
// an adaptation.
type Metrics struct {
	SuccessRate        float64 `json:"success_rate"`
	AvgConfidence      float64 `json:"avg_confidence"`
	EmotionSensitivity float64 `json:"emotion_sensitivity"`
	MetaSensitivity    float64 `json:"meta_sensitivity"`
}

// PerformanceProvider supplies execution statistics for a signature. The
// orchestrator implements it over its execution history.
type PerformanceProvider interface {
	SignaturePerformance(signatureID string) (successRate, avgConfidence float64)
}

// AdaptationResult records one applied adaptation: before/after metric
// snapshots and the resulting success score.
type AdaptationResult struct {
	ID          string    `json:"id"`
	SignatureID string    `json:"signature_id"`
	PatternID   string    `json:"pattern_id"`
	Action      Action    `json:"action"`
	Before      Metrics   `json:"before"`
	After       Metrics   `json:"after"`
	SuccessRate float64   `json:"success_rate"`
	Timestamp   time.Time `json:"timestamp"`
}

// CycleReport summarizes one learning cycle.
type CycleReport struct {
	PatternsDetected      int           `json:"patterns_detected"`
	ActionsGenerated      int           `json:"actions_generated"`
	ActionsExecuted       int           `json:"actions_executed"`
	SuccessfulAdaptations int           `json:"successful_adaptations"`
	MeanSuccessRate       float64       `json:"mean_success_rate"`
	Duration              time.Duration `json:"duration"`
	Timestamp             time.Time     `json:"timestamp"`
}

// Improvement trend values reported by the learning summary.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// Summary is the read API over the learning engine's state.
type Summary struct {
	TotalPatterns    int    `json:"total_patterns"`
	TotalAdaptations int    `json:"total_adaptations"`
	ImprovementTrend string `json:"improvement_trend"`
}

// Config tunes detection and application.
type Config struct {
	WindowDays    int // trailing analysis window
	MinFrequency  int // occurrences before a group becomes a pattern
	CooldownHours int // min spacing between adaptations of one signature
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{WindowDays: 7, MinFrequency: 3, CooldownHours: 24}
}

// Engine is the adaptive learning engine. Cycles are expected to run far
// less often than judgments; one mutex serializes cycle state (cooldowns and
// adaptation history) while the observation history and signature registry
// keep their own synchronization.
type Engine struct {
	cfg       Config
	registry  *signature.Registry
	history   *History
	perf      PerformanceProvider
	evolution logging.EvolutionLogger
	now       func() time.Time

	mu            sync.Mutex
	cooldownUntil map[string]time.Time
	adaptations   []AdaptationResult
	patternsSeen  int
}

// NewEngine wires the learning engine. perf and evolution may be nil for
// detection-only use.
func NewEngine(cfg Config, registry *signature.Registry, history *History, perf PerformanceProvider, evolution logging.EvolutionLogger) *Engine {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultConfig().WindowDays
	}
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = DefaultConfig().MinFrequency
	}
	if evolution == nil {
		evolution = logging.NopSink{}
	}
	return &Engine{
		cfg:           cfg,
		registry:      registry,
		history:       history,
		perf:          perf,
		evolution:     evolution,
		now:           time.Now,
		cooldownUntil: make(map[string]time.Time),
	}
}

// SetClock overrides the engine clock for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// AnalyzeFailurePatterns scans the trailing windowDays of observations for
// recurring failure groups. windowDays<=0 uses the configured window.
func (e *Engine) AnalyzeFailurePatterns(windowDays int) []FailurePattern {
	if windowDays <= 0 {
		windowDays = e.cfg.WindowDays
	}
	now := e.now()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	return detectPatterns(e.history.Recent(since), e.cfg.MinFrequency, now)
}

// ApplyActions executes corrective actions, skipping targets in cooldown.
// Every applied action produces one AdaptationResult and starts the target's
// cooldown, so at most one adaptation lands per signature per window.
func (e *Engine) ApplyActions(actions []Action) []AdaptationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	before := e.collectMetrics(actions)

	var results []AdaptationResult
	for _, action := range actions {
		if until, ok := e.cooldownUntil[action.Target]; ok && now.Before(until) {
			continue // cooldown violations are skips, not errors
		}

		if err := e.execute(action); err != nil {
			_ = e.evolution.LogEvolution(logging.EvolutionEvent{
				Event:       "adaptation_failed",
				Cause:       []string{action.ID},
				Effect:      []string{err.Error()},
				SignatureID: action.Target,
				Timestamp:   now,
			})
			continue
		}

		after := e.metricsFor(action.Target)
		result := AdaptationResult{
			ID:          "adapt_" + uuid.NewString(),
			SignatureID: action.Target,
			PatternID:   action.ID,
			Action:      action,
			Before:      before[action.Target],
			After:       after,
			SuccessRate: adaptationSuccessRate(before[action.Target], after),
			Timestamp:   now,
		}
		results = append(results, result)
		e.adaptations = append(e.adaptations, result)
		e.cooldownUntil[action.Target] = now.Add(time.Duration(e.cfg.CooldownHours) * time.Hour)

		_ = e.evolution.LogEvolution(logging.EvolutionEvent{
			Event:              fmt.Sprintf("adaptive_learning_%s", action.Kind),
			Tags:               []string{"adaptive_learning", "auto_improvement"},
			Cause:              []string{action.ID},
			Effect:             []string{fmt.Sprintf("success_rate_%.2f", result.SuccessRate)},
			Resolution:         fmt.Sprintf("signature %s adapted", action.Target),
			SignatureID:        action.Target,
			AdaptationStrength: action.ExpectedImprovement,
			Timestamp:          now,
		})
	}
	return results
}

// RunCycle executes one full detect-generate-apply pass.
func (e *Engine) RunCycle() CycleReport {
	start := e.now()

	patterns := e.AnalyzeFailurePatterns(0)
	e.mu.Lock()
	e.patternsSeen += len(patterns)
	e.mu.Unlock()

	report := CycleReport{
		PatternsDetected: len(patterns),
		Timestamp:        start,
	}
	if len(patterns) == 0 {
		report.Duration = e.now().Sub(start)
		return report
	}

	actions := GenerateActions(patterns)
	results := e.ApplyActions(actions)

	report.ActionsGenerated = len(actions)
	report.ActionsExecuted = len(results)
	sum := 0.0
	for _, r := range results {
		sum += r.SuccessRate
		if r.SuccessRate > 0.5 {
			report.SuccessfulAdaptations++
		}
	}
	if len(results) > 0 {
		report.MeanSuccessRate = sum / float64(len(results))
	}
	report.Duration = e.now().Sub(start)
	return report
}

// LearningSummary reports totals and the improvement trend over recent
// adaptations.
func (e *Engine) LearningSummary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Summary{
		TotalPatterns:    e.patternsSeen,
		TotalAdaptations: len(e.adaptations),
		ImprovementTrend: improvementTrend(e.adaptations),
	}
}

// Adaptations returns a copy of the adaptation history.
func (e *Engine) Adaptations() []AdaptationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]AdaptationResult(nil), e.adaptations...)
}

// CooldownState exposes the per-signature cooldown deadlines for snapshots.
func (e *Engine) CooldownState() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]time.Time, len(e.cooldownUntil))
	for k, v := range e.cooldownUntil {
		out[k] = v
	}
	return out
}

// RestoreCooldowns reloads cooldown deadlines from a snapshot.
func (e *Engine) RestoreCooldowns(state map[string]time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range state {
		e.cooldownUntil[k] = v
	}
}

// collectMetrics snapshots before-metrics for every distinct action target
// in parallel.
func (e *Engine) collectMetrics(actions []Action) map[string]Metrics {
	targets := make([]string, 0, len(actions))
	seen := make(map[string]bool, len(actions))
	for _, a := range actions {
		if !seen[a.Target] {
			seen[a.Target] = true
			targets = append(targets, a.Target)
		}
	}

	out := make(map[string]Metrics, len(targets))
	var outMu sync.Mutex
	var g errgroup.Group
	for _, target := range targets {
		target := target
		g.Go(func() error {
			m := e.metricsFor(target)
			outMu.Lock()
			out[target] = m
			outMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// metricsFor composes the metric snapshot for one signature from the
// performance provider and the live profile.
func (e *Engine) metricsFor(signatureID string) Metrics {
	m := Metrics{}
	if e.perf != nil {
		m.SuccessRate, m.AvgConfidence = e.perf.SignaturePerformance(signatureID)
	}
	if e.registry != nil && e.registry.Has(signatureID) {
		p := e.registry.Get(signatureID)
		m.EmotionSensitivity = p.EmotionSensitivity
		m.MetaSensitivity = p.MetaSensitivity
	}
	return m
}

// execute applies one action's numeric effect; all profile mutations clamp
// to [0,1] inside the registry.
func (e *Engine) execute(action Action) error {
	switch action.Kind {
	case ActionEvolveSignature:
		if action.Evolve == nil {
			return fmt.Errorf("evolve action %s missing parameters", action.ID)
		}
		delta := 0.1 * action.Evolve.Strength
		if _, ok := e.registry.AdjustMetaSensitivity(action.Target, delta); !ok {
			return fmt.Errorf("unknown signature %s", action.Target)
		}
		e.registry.AddStrategy(action.Target, "adaptive")
		return nil

	case ActionAdjustSensitivity:
		if action.Adjust == nil {
			return fmt.Errorf("adjust action %s missing parameters", action.ID)
		}
		delta := action.Adjust.Delta
		if !action.Adjust.Increase {
			delta = -delta
		}
		if _, ok := e.registry.AdjustMetaSensitivity(action.Target, delta); !ok {
			return fmt.Errorf("unknown signature %s", action.Target)
		}
		return nil

	case ActionCreateSignature:
		if action.Create == nil {
			return fmt.Errorf("create action %s missing parameters", action.ID)
		}
		base := e.registry.Get(action.Create.BaseSignature)
		specialized := base.Clone()
		specialized.ID = action.Target
		specialized.Name = "Adapted " + base.Name
		specialized.PrimaryStrategies = append(specialized.PrimaryStrategies, "adaptive")
		e.registry.Ensure(specialized)
		return nil

	case ActionSpecializeContext:
		if action.Specialize == nil {
			return fmt.Errorf("specialize action %s missing parameters", action.ID)
		}
		if action.Specialize.Area == ReasonEmotionalDiscord {
			if _, ok := e.registry.AdjustEmotionSensitivity(action.Target, -0.05); !ok {
				return fmt.Errorf("unknown signature %s", action.Target)
			}
			return nil
		}
		if !e.registry.AddStrategy(action.Target, "context:"+action.Specialize.Area) {
			return fmt.Errorf("unknown signature %s", action.Target)
		}
		return nil

	case ActionFineTune:
		if action.FineTune == nil {
			return fmt.Errorf("finetune action %s missing parameters", action.ID)
		}
		var ok bool
		switch action.FineTune.TargetMetric {
		case ReasonEmotionalDiscord:
			_, ok = e.registry.AdjustEmotionSensitivity(action.Target, action.FineTune.Magnitude)
		default:
			_, ok = e.registry.AdjustMetaSensitivity(action.Target, action.FineTune.Magnitude)
		}
		if !ok {
			return fmt.Errorf("unknown signature %s", action.Target)
		}
		return nil

	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

// adaptationSuccessRate maps the mean relative improvement across metric
// fields into [0,1] around the neutral 0.5.
func adaptationSuccessRate(before, after Metrics) float64 {
	type pair struct{ b, a float64 }
	pairs := []pair{
		{before.SuccessRate, after.SuccessRate},
		{before.AvgConfidence, after.AvgConfidence},
		{before.EmotionSensitivity, after.EmotionSensitivity},
		{before.MetaSensitivity, after.MetaSensitivity},
	}

	sum, n := 0.0, 0
	for _, p := range pairs {
		if p.b > 0 {
			sum += (p.a - p.b) / p.b
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	rate := 0.5 + sum/float64(n)
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// improvementTrend compares the last five adaptation success rates with the
// previous five.
func improvementTrend(adaptations []AdaptationResult) string {
	if len(adaptations) < 3 {
		return TrendInsufficientData
	}

	recent := adaptations[max(0, len(adaptations)-5):]
	early := recent
	if len(adaptations) >= 10 {
		early = adaptations[len(adaptations)-10 : len(adaptations)-5]
	}

	mean := func(rs []AdaptationResult) float64 {
		sum := 0.0
		for _, r := range rs {
			sum += r.SuccessRate
		}
		return sum / float64(len(rs))
	}

	recentAvg, earlyAvg := mean(recent), mean(early)
	switch {
	case recentAvg > earlyAvg+0.1:
		return TrendImproving
	case recentAvg < earlyAvg-0.1:
		return TrendDeclining
	default:
		return TrendStable
	}
}
