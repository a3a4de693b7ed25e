package reinforcement

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// =============================================================================
// Q-TABLE ENGINE
// =============================================================================

// Config holds the engine's learning parameters.
type Config struct {
	Epsilon      float64 `yaml:"epsilon" json:"epsilon"`             // exploration probability
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"` // TD step size
	MinValue     float64 `yaml:"min_value" json:"min_value"`         // value clamp floor
	MaxValue     float64 `yaml:"max_value" json:"max_value"`         // value clamp ceiling
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		Epsilon:      0.1,
		LearningRate: 0.1,
		MinValue:     -1.0,
		MaxValue:     1.0,
	}
}

// entry is one (state, action) cell of the value table.
type entry struct {
	Value      float64
	Uses       int
	LastReward float64
}

// Recommendation is the engine's proposal for a state.
type Recommendation struct {
	LoopID   string  `json:"loop_id"`
	Value    float64 `json:"value"`
	Explored bool    `json:"explored"` // chosen by exploration, not learned value
}

// Engine is the reinforcement learner. All methods are safe for concurrent
// use; per-entry updates are atomic under the table lock.
type Engine struct {
	cfg Config

	mu       sync.RWMutex
	table    map[StateKey]map[string]*entry
	updates  int
	positive int

	randFloat func() float64
	randIntn  func(n int) int
}

// NewEngine creates an engine with the given parameters. Zero-valued fields
// fall back to the defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Epsilon == 0 && cfg.LearningRate == 0 && cfg.MinValue == 0 && cfg.MaxValue == 0 {
		cfg = def
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.MaxValue <= cfg.MinValue {
		cfg.MinValue = def.MinValue
		cfg.MaxValue = def.MaxValue
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Engine{
		cfg:       cfg,
		table:     make(map[StateKey]map[string]*entry),
		randFloat: rng.Float64,
		randIntn:  rng.Intn,
	}
}

// SetRandSource overrides the exploration source. Tests use this to make
// epsilon-greedy deterministic.
func (e *Engine) SetRandSource(randFloat func() float64, randIntn func(n int) int) {
	e.randFloat = randFloat
	e.randIntn = randIntn
}

// Recommend proposes a loop for the state among the admissible loop ids.
// With probability epsilon it explores uniformly; otherwise it exploits the
// highest-valued admissible loop. It reports ok=false when nothing has been
// learned for the state, deferring the choice to the selector.
func (e *Engine) Recommend(state StateKey, admissible []string) (Recommendation, bool) {
	if len(admissible) == 0 {
		return Recommendation{}, false
	}

	if e.randFloat() < e.cfg.Epsilon {
		loopID := admissible[e.randIntn(len(admissible))]
		return Recommendation{LoopID: loopID, Value: e.Value(state, loopID), Explored: true}, true
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	actions := e.table[state]
	if len(actions) == 0 {
		return Recommendation{}, false
	}

	best := ""
	bestValue := math.Inf(-1)
	for _, loopID := range admissible {
		ent, ok := actions[loopID]
		if !ok {
			continue
		}
		if ent.Value > bestValue {
			best = loopID
			bestValue = ent.Value
		}
	}
	if best == "" {
		return Recommendation{}, false
	}
	return Recommendation{LoopID: best, Value: bestValue}, true
}

// Update applies the temporal-difference step Q += alpha*(r - Q) for the
// (state, action) cell, clamping the value to the configured range.
func (e *Engine) Update(state StateKey, loopID string, reward float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	actions := e.table[state]
	if actions == nil {
		actions = make(map[string]*entry)
		e.table[state] = actions
	}
	ent := actions[loopID]
	if ent == nil {
		ent = &entry{}
		actions[loopID] = ent
	}

	ent.Value += e.cfg.LearningRate * (reward - ent.Value)
	ent.Value = math.Max(e.cfg.MinValue, math.Min(e.cfg.MaxValue, ent.Value))
	ent.Uses++
	ent.LastReward = reward

	e.updates++
	if reward > 0 {
		e.positive++
	}
	return ent.Value
}

// Value returns the learned value for a (state, action) cell, zero when the
// cell is unseen.
func (e *Engine) Value(state StateKey, loopID string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if actions := e.table[state]; actions != nil {
		if ent := actions[loopID]; ent != nil {
			return ent.Value
		}
	}
	return 0
}

// Stats summarizes the learned table.
type Stats struct {
	Entries         int     `json:"entries"`
	TotalUpdates    int     `json:"total_updates"`
	PositiveRewards int     `json:"positive_rewards"`
	MinValue        float64 `json:"min_value"`
	MeanValue       float64 `json:"mean_value"`
	MaxValue        float64 `json:"max_value"`
}

// Statistics returns aggregate table statistics.
func (e *Engine) Statistics() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Stats{TotalUpdates: e.updates, PositiveRewards: e.positive}
	sum := 0.0
	first := true
	for _, actions := range e.table {
		for _, ent := range actions {
			st.Entries++
			sum += ent.Value
			if first || ent.Value < st.MinValue {
				st.MinValue = ent.Value
			}
			if first || ent.Value > st.MaxValue {
				st.MaxValue = ent.Value
			}
			first = false
		}
	}
	if st.Entries > 0 {
		st.MeanValue = sum / float64(st.Entries)
	}
	return st
}
