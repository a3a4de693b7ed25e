package reinforcement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echojudge/internal/loops"
)

// noExplore forces pure exploitation.
func noExplore(e *Engine) {
	e.SetRandSource(func() float64 { return 0.99 }, func(n int) int { return 0 })
}

func TestBucketize(t *testing.T) {
	assert.Equal(t, BucketLow, Bucketize(0.0))
	assert.Equal(t, BucketLow, Bucketize(0.33))
	assert.Equal(t, BucketMedium, Bucketize(0.34))
	assert.Equal(t, BucketMedium, Bucketize(0.66))
	assert.Equal(t, BucketHigh, Bucketize(0.67))
	assert.Equal(t, BucketHigh, Bucketize(1.0))
}

func TestStateFor(t *testing.T) {
	jc := &loops.JudgmentContext{Complexity: 0.9, Uncertainty: 0.5, EmotionalIntensity: 0.1}
	key := StateFor("Echo-Sage", jc)

	assert.Equal(t, "Echo-Sage", key.SignatureID)
	assert.Equal(t, BucketHigh, key.Complexity)
	assert.Equal(t, BucketMedium, key.Uncertainty)
	assert.Equal(t, BucketLow, key.Emotion)
}

func TestUpdate_FixedPoint(t *testing.T) {
	e := NewEngine(DefaultConfig())
	state := StateKey{SignatureID: "x", Complexity: BucketLow, Uncertainty: BucketLow, Emotion: BucketLow}

	// Drive Q(s,a) to exactly r, then verify update(s,a,r) leaves it unchanged.
	const r = 0.42
	e.mu.Lock()
	e.table[state] = map[string]*entry{"FIST": {Value: r}}
	e.mu.Unlock()

	got := e.Update(state, "FIST", r)
	assert.InDelta(t, r, got, 1e-12)
}

func TestUpdate_MovesTowardReward(t *testing.T) {
	e := NewEngine(DefaultConfig())
	state := StateKey{SignatureID: "x", Complexity: BucketHigh, Uncertainty: BucketLow, Emotion: BucketLow}

	v1 := e.Update(state, "FIST", 1.0)
	assert.InDelta(t, 0.1, v1, 1e-9) // 0 + 0.1*(1-0)
	v2 := e.Update(state, "FIST", 1.0)
	assert.InDelta(t, 0.19, v2, 1e-9)
	assert.Greater(t, v2, v1)
}

func TestUpdate_ClampsToRange(t *testing.T) {
	e := NewEngine(Config{Epsilon: 0.1, LearningRate: 1.5, MinValue: -1, MaxValue: 1})
	state := StateKey{SignatureID: "x", Complexity: BucketLow, Uncertainty: BucketLow, Emotion: BucketLow}

	for i := 0; i < 50; i++ {
		v := e.Update(state, "FLOW", 1.0)
		assert.LessOrEqual(t, v, 1.0)
		assert.GreaterOrEqual(t, v, -1.0)
	}
}

func TestReward_AlwaysInRange(t *testing.T) {
	durations := []time.Duration{0, 100 * time.Millisecond, time.Second, 5 * time.Second}
	scores := []float64{0, 0.25, 0.5, 0.75, 1}

	for _, success := range []bool{true, false} {
		for _, d := range durations {
			for _, sat := range scores {
				for _, eff := range scores {
					for _, mq := range scores {
						r := Reward(Feedback{Success: success, Satisfaction: sat, Effectiveness: eff, MetaQuality: mq, Duration: d})
						require.LessOrEqual(t, r, 1.0)
						require.GreaterOrEqual(t, r, -1.0)
					}
				}
			}
		}
	}
}

func TestReward_Shaping(t *testing.T) {
	// Fast neutral success: 0.5 base + 0.1 time bonus.
	r := Reward(NeutralFeedback(true, 100*time.Millisecond))
	assert.InDelta(t, 0.6, r, 1e-9)

	// Slow neutral failure: -0.3 base - 0.1 time penalty.
	r = Reward(NeutralFeedback(false, 3*time.Second))
	assert.InDelta(t, -0.4, r, 1e-9)

	// Full positive signals cap at 1.
	r = Reward(Feedback{Success: true, Satisfaction: 1, Effectiveness: 1, MetaQuality: 1, Duration: time.Millisecond})
	assert.InDelta(t, 1.0, r, 1e-9)
}

func TestRecommend_EmptyTableDefers(t *testing.T) {
	e := NewEngine(DefaultConfig())
	noExplore(e)

	_, ok := e.Recommend(StateKey{SignatureID: "x"}, []string{"FIST", "FLOW"})
	assert.False(t, ok)
}

func TestRecommend_ExploitsBestAdmissible(t *testing.T) {
	e := NewEngine(DefaultConfig())
	noExplore(e)
	state := StateKey{SignatureID: "x", Complexity: BucketMedium, Uncertainty: BucketLow, Emotion: BucketLow}

	for i := 0; i < 30; i++ {
		e.Update(state, "FIST", 0.9)
		e.Update(state, "FLOW", -0.5)
	}

	rec, ok := e.Recommend(state, []string{"FIST", "FLOW", "JUDGE"})
	require.True(t, ok)
	assert.Equal(t, "FIST", rec.LoopID)
	assert.False(t, rec.Explored)
	assert.Greater(t, rec.Value, 0.7)

	// FIST not admissible: falls to next learned loop.
	rec, ok = e.Recommend(state, []string{"FLOW", "JUDGE"})
	require.True(t, ok)
	assert.Equal(t, "FLOW", rec.LoopID)
}

func TestRecommend_Explores(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Always explore, always pick index 1.
	e.SetRandSource(func() float64 { return 0.0 }, func(n int) int { return 1 })

	rec, ok := e.Recommend(StateKey{SignatureID: "x"}, []string{"FIST", "FLOW"})
	require.True(t, ok)
	assert.Equal(t, "FLOW", rec.LoopID)
	assert.True(t, rec.Explored)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	e := NewEngine(DefaultConfig())
	noExplore(e)

	states := []StateKey{
		{SignatureID: "Echo-Aurora", Complexity: BucketHigh, Uncertainty: BucketLow, Emotion: BucketMedium},
		{SignatureID: "Echo-Sage", Complexity: BucketLow, Uncertainty: BucketHigh, Emotion: BucketLow},
	}
	for i, state := range states {
		for j, loopID := range []string{"FIST", "FLOW", "QUANTUM"} {
			for k := 0; k < (i+1)*(j+2); k++ {
				e.Update(state, loopID, 0.8-0.3*float64(j))
			}
		}
	}

	fresh := NewEngine(DefaultConfig())
	noExplore(fresh)
	require.NoError(t, fresh.Restore(e.Snapshot()))

	admissible := []string{"FIST", "FLOW", "QUANTUM", "JUDGE"}
	for _, state := range states {
		want, wantOK := e.Recommend(state, admissible)
		got, gotOK := fresh.Recommend(state, admissible)
		require.Equal(t, wantOK, gotOK)
		assert.Equal(t, want.LoopID, got.LoopID)
		assert.InDelta(t, want.Value, got.Value, 1e-12)
	}

	assert.Equal(t, e.Statistics(), fresh.Statistics())
}

func TestRestore_RejectsMalformedKey(t *testing.T) {
	e := NewEngine(DefaultConfig())
	err := e.Restore(Snapshot{Entries: map[string]EntrySnapshot{"not-a-key": {Value: 0.5}}})
	assert.Error(t, err)

	err = e.Restore(Snapshot{Entries: map[string]EntrySnapshot{"sig|low|weird|high|FIST": {Value: 0.5}}})
	assert.Error(t, err)
}

func TestRestore_RejectsOutOfRangeValue(t *testing.T) {
	e := NewEngine(DefaultConfig())
	err := e.Restore(Snapshot{Entries: map[string]EntrySnapshot{"sig|low|low|high|FIST": {Value: 4.2}}})
	assert.Error(t, err)
}
