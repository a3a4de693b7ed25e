package signature

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echojudge/internal/loops"
)

func newTestSelector() *Selector {
	return NewSelector(NewRegistry(nil))
}

func TestSelectLoop_PriorityLadder(t *testing.T) {
	s := newTestSelector()

	tests := []struct {
		name string
		jc   loops.JudgmentContext
		want string
	}{
		{"failure wins over everything", loops.JudgmentContext{FailureDetected: true, Complexity: 0.9, EmotionalIntensity: 0.9}, loops.LoopRISE},
		{"high complexity", loops.JudgmentContext{Complexity: 0.9, EmotionalIntensity: 0.2}, loops.LoopFIST},
		{"complexity at threshold is not high", loops.JudgmentContext{Complexity: 0.7}, loops.LoopJUDGE},
		{"high emotion", loops.JudgmentContext{EmotionalIntensity: 0.7}, loops.LoopFLOW},
		{"high uncertainty", loops.JudgmentContext{Uncertainty: 0.85}, loops.LoopQUANTUM},
		{"meta cognition", loops.JudgmentContext{MetaCognitionNeeded: true}, loops.LoopMETA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Echo-Companion has no ladder-relevant strategy preference.
			got := s.SelectLoop("Echo-Companion", &tt.jc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectLoop_FailureForAllSignatures(t *testing.T) {
	s := newTestSelector()
	jc := &loops.JudgmentContext{FailureDetected: true}

	for _, id := range append(NewRegistry(nil).IDs(), "totally-unknown") {
		assert.Equal(t, loops.LoopRISE, s.SelectLoop(id, jc), "signature %s", id)
	}
}

func TestSelectLoop_StrategyPreferences(t *testing.T) {
	reg := NewRegistry([]Profile{
		{ID: "analyst", PrimaryStrategies: []string{"analytical"}},
		{ID: "feeler", PrimaryStrategies: []string{"empathetic"}},
		{ID: "changer", PrimaryStrategies: []string{"transformative"}},
		{ID: "plain", PrimaryStrategies: []string{"collaborative"}},
	})
	s := NewSelector(reg)
	calm := &loops.JudgmentContext{Complexity: 0.3}

	assert.Equal(t, loops.LoopFIST, s.SelectLoop("analyst", calm))
	assert.Equal(t, loops.LoopFLOW, s.SelectLoop("feeler", calm))
	assert.Equal(t, loops.LoopRISE, s.SelectLoop("changer", calm))
	assert.Equal(t, loops.LoopJUDGE, s.SelectLoop("plain", calm))
}

func TestSelectLoop_ScenarioHighComplexity(t *testing.T) {
	s := newTestSelector()
	jc := &loops.JudgmentContext{Complexity: 0.9, EmotionalIntensity: 0.2}

	for _, id := range []string{"Echo-Aurora", "Echo-Phoenix", "Echo-Sage", "Echo-Companion"} {
		assert.Equal(t, loops.LoopFIST, s.SelectLoop(id, jc), "signature %s", id)
	}
}

func TestSensitivity_Bounds(t *testing.T) {
	s := newTestSelector()
	reg := NewRegistry(nil)

	for _, sig := range reg.IDs() {
		for _, loop := range []string{"FIST", "RISE", "DIR", "PIR", "META", "FLOW", "QUANTUM", "JUDGE", "other"} {
			v := s.Sensitivity(sig, loop)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestSensitivity_Weights(t *testing.T) {
	reg := NewRegistry([]Profile{{ID: "x", EmotionSensitivity: 1.0, MetaSensitivity: 0.5}})
	s := NewSelector(reg)

	assert.InDelta(t, 0.4, s.Sensitivity("x", loops.LoopFIST), 1e-9)  // meta*0.8
	assert.InDelta(t, 0.7, s.Sensitivity("x", loops.LoopRISE), 1e-9)  // emotion*0.7
	assert.InDelta(t, 0.5, s.Sensitivity("x", loops.LoopMETA), 1e-9)  // meta
	assert.InDelta(t, 1.0, s.Sensitivity("x", loops.LoopFLOW), 1e-9)  // emotion
	assert.InDelta(t, 0.75, s.Sensitivity("x", loops.LoopJUDGE), 1e-9)
	assert.InDelta(t, 0.5, s.Sensitivity("x", "UNKNOWN"), 1e-9)
}

func TestRegistry_UnknownFallsBackToDefault(t *testing.T) {
	reg := NewRegistry(nil)

	p := reg.Get("does-not-exist")
	require.Equal(t, DefaultID, p.ID)
}

func TestRegistry_AdjustClamps(t *testing.T) {
	reg := NewRegistry([]Profile{{ID: "x", EmotionSensitivity: 0.95, MetaSensitivity: 0.05}})

	v, ok := reg.AdjustEmotionSensitivity("x", 0.2)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = reg.AdjustMetaSensitivity("x", -0.2)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = reg.AdjustMetaSensitivity("missing", 0.1)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentAdjustments(t *testing.T) {
	reg := NewRegistry([]Profile{{ID: "x", EmotionSensitivity: 0.0}})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.AdjustEmotionSensitivity("x", 0.005)
		}()
	}
	wg.Wait()

	got := reg.Get("x").EmotionSensitivity
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestRegistry_Ensure(t *testing.T) {
	reg := NewRegistry(nil)

	added := reg.Ensure(Profile{ID: "Echo-Sage-adapted", EmotionSensitivity: 0.4, MetaSensitivity: 0.9})
	assert.True(t, added)
	assert.False(t, reg.Ensure(Profile{ID: "Echo-Sage-adapted"}))
	assert.True(t, reg.Has("Echo-Sage-adapted"))
}
