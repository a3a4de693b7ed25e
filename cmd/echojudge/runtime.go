package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"echojudge/internal/config"
	"echojudge/internal/learning"
	"echojudge/internal/logging"
	"echojudge/internal/loops"
	"echojudge/internal/orchestrator"
	"echojudge/internal/reinforcement"
	"echojudge/internal/signature"
	"echojudge/internal/store"
)

// runtime is the fully wired judgment system for one CLI invocation.
type runtime struct {
	cfg          config.Config
	store        *store.Store
	catalog      *loops.Catalog
	executor     *loops.Executor
	registry     *signature.Registry
	engine       *reinforcement.Engine
	observations *learning.History
	learner      *learning.Engine
	orch         *orchestrator.Orchestrator
	fileSink     *logging.FileSink
	logger       *zap.Logger

	priorStates map[string]store.SignatureState
}

// newRuntime loads configuration and persisted state and wires every
// component. Corrupt learned state is logged and discarded, never fatal.
func newRuntime(logger *zap.Logger) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	catalog, err := loops.LoadCatalog(filepath.Join(cfg.DataDir, "loops.yaml"))
	if err != nil {
		return nil, err
	}
	executor := loops.NewExecutor(catalog)
	executor.SetPhaseTimeout(cfg.Execution.PhaseTimeout.Std())

	profiles, err := signature.LoadProfiles(filepath.Join(cfg.DataDir, "signatures.yaml"))
	if err != nil {
		return nil, err
	}

	priorStates, _, err := st.LoadSignatures()
	if err != nil {
		logger.Warn("discarding corrupt signature snapshot", zap.Error(err))
		priorStates = nil
	}
	for i, p := range profiles {
		if state, ok := priorStates[p.ID]; ok {
			profiles[i].EmotionSensitivity = state.EmotionSensitivity
			profiles[i].MetaSensitivity = state.MetaSensitivity
		}
	}
	registry := signature.NewRegistry(profiles)

	engine := reinforcement.NewEngine(cfg.Reinforcement)
	if snap, ok, err := st.LoadQTable(); err != nil {
		logger.Warn("discarding corrupt value-table snapshot", zap.Error(err))
	} else if ok {
		if err := engine.Restore(snap); err != nil {
			logger.Warn("discarding invalid value-table snapshot", zap.Error(err))
		}
	}

	observations := learning.NewHistory(cfg.Execution.HistorySize)
	if persisted, ok, err := st.LoadObservations(); err != nil {
		logger.Warn("discarding corrupt observation snapshot", zap.Error(err))
	} else if ok {
		for _, obs := range persisted {
			observations.Append(obs)
		}
	}

	zapSink := logging.NewZapSink(logger)
	fileSink, err := logging.NewFileSink(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	meta := logging.TeeMeta(zapSink, fileSink)
	evolution := logging.TeeEvolution(zapSink, fileSink)

	orch := orchestrator.New(orchestrator.Options{
		HistorySize:       cfg.Execution.HistorySize,
		OverrideThreshold: cfg.Execution.OverrideThreshold,
		PoorConfidence:    cfg.Execution.PoorConfidence,
		PoorAdaptation:    cfg.Execution.PoorAdaptation,
		PoorDuration:      cfg.Execution.PoorDuration.Std(),
	}, executor, signature.NewSelector(registry), engine, observations, meta, evolution, logger)

	learner := learning.NewEngine(learning.Config{
		WindowDays:    cfg.Learning.WindowDays,
		MinFrequency:  cfg.Learning.MinFrequency,
		CooldownHours: cfg.Learning.CooldownHours,
	}, registry, observations, orch, evolution)

	cooldowns := make(map[string]time.Time)
	for id, state := range priorStates {
		if !state.CooldownUntil.IsZero() {
			cooldowns[id] = state.CooldownUntil
		}
	}
	learner.RestoreCooldowns(cooldowns)

	return &runtime{
		cfg:          cfg,
		store:        st,
		catalog:      catalog,
		executor:     executor,
		registry:     registry,
		engine:       engine,
		observations: observations,
		learner:      learner,
		orch:         orch,
		fileSink:     fileSink,
		logger:       logger,
		priorStates:  priorStates,
	}, nil
}

// flush settles pending rewards and writes all snapshots.
func (rt *runtime) flush() error {
	rt.orch.Flush()

	if err := rt.store.SaveQTable(rt.engine.Snapshot()); err != nil {
		return fmt.Errorf("failed to save value table: %w", err)
	}
	if err := rt.store.SaveSignatures(rt.signatureStates()); err != nil {
		return fmt.Errorf("failed to save signatures: %w", err)
	}
	if err := rt.store.SaveObservations(rt.observations.Recent(time.Time{})); err != nil {
		return fmt.Errorf("failed to save observations: %w", err)
	}
	return rt.fileSink.Close()
}

// signatureStates assembles the persisted view of every registered
// signature, carrying adaptation counts forward.
func (rt *runtime) signatureStates() map[string]store.SignatureState {
	cooldowns := rt.learner.CooldownState()
	counts := make(map[string]int)
	for id, prior := range rt.priorStates {
		counts[id] = prior.Adaptations
	}
	for _, result := range rt.learner.Adaptations() {
		counts[result.SignatureID]++
	}

	states := make(map[string]store.SignatureState)
	for _, id := range rt.registry.IDs() {
		p := rt.registry.Get(id)
		states[id] = store.SignatureState{
			EmotionSensitivity: p.EmotionSensitivity,
			MetaSensitivity:    p.MetaSensitivity,
			CooldownUntil:      cooldowns[id],
			Adaptations:        counts[id],
		}
	}
	return states
}

// deriveContext builds a judgment context from raw input text with cheap
// lexical heuristics. Only the CLI uses this; API callers pass explicit
// context features.
func deriveContext(input string) *loops.JudgmentContext {
	words := strings.Fields(input)
	lower := strings.ToLower(input)

	jc := &loops.JudgmentContext{
		Complexity:         clamp01(float64(len(words)) / 60.0),
		Uncertainty:        uncertaintyScore(lower),
		EmotionalIntensity: emotionScore(input, lower),
	}

	for _, marker := range []string{"failed", "failure", "broken", "wrong", "error"} {
		if strings.Contains(lower, marker) {
			jc.FailureDetected = true
			break
		}
	}
	for _, marker := range []string{"why do i", "reflect", "thinking about", "am i"} {
		if strings.Contains(lower, marker) {
			jc.MetaCognitionNeeded = true
			break
		}
	}
	return jc
}

func uncertaintyScore(lower string) float64 {
	score := 0.0
	for _, marker := range []string{"maybe", "perhaps", "not sure", "unclear", "might", "uncertain", "?"} {
		score += 0.15 * float64(strings.Count(lower, marker))
	}
	return clamp01(score)
}

func emotionScore(input, lower string) float64 {
	score := 0.1
	for _, r := range input {
		if r == '!' {
			score += 0.15
		}
	}
	for _, marker := range []string{"love", "hate", "angry", "sad", "happy", "afraid", "excited"} {
		if strings.Contains(lower, marker) {
			score += 0.2
		}
	}
	upper := 0
	letters := 0
	for _, r := range input {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters > 10 && float64(upper)/float64(letters) > 0.5 {
		score += 0.2
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
