package loops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// EXECUTOR - RUN A LOOP'S PHASES IN ORDER
// =============================================================================

// Output is the opaque accumulated output of a loop run. Each phase writes
// its contribution under its own key.
type Output map[string]any

// PhaseFunc is a pluggable phase implementation supplied by the domain layer.
// It reads the judgment context and writes its contribution into out.
type PhaseFunc func(ctx context.Context, jc *JudgmentContext, out Output) error

// Result is the immutable record of one loop execution. A failed execution
// still carries the phases completed before the failure.
type Result struct {
	LoopID          string        `json:"loop_id"`
	PhasesCompleted []string      `json:"phases_completed"`
	Success         bool          `json:"success"`
	Output          Output        `json:"output,omitempty"`
	Duration        time.Duration `json:"duration"`
	ErrorText       string        `json:"error_text,omitempty"`
}

// Executor runs loops from a catalog. Phase implementations can be registered
// per (loop, phase); unregistered phases fall back to a stub that records the
// phase as processed.
type Executor struct {
	catalog      *Catalog
	phaseTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	phases map[string]map[string]PhaseFunc // loop id -> phase name -> impl
}

// DefaultPhaseTimeout bounds a single phase. The reference system ran phases
// unbounded; a timed-out phase surfaces as a loop_timeout failure.
const DefaultPhaseTimeout = 5 * time.Second

// NewExecutor creates an executor over the given catalog.
func NewExecutor(catalog *Catalog) *Executor {
	return &Executor{
		catalog:      catalog,
		phaseTimeout: DefaultPhaseTimeout,
		now:          time.Now,
		phases:       make(map[string]map[string]PhaseFunc),
	}
}

// SetPhaseTimeout overrides the per-phase timeout. Zero disables the guard.
func (e *Executor) SetPhaseTimeout(d time.Duration) {
	e.phaseTimeout = d
}

// RegisterPhase installs a phase implementation for one loop.
func (e *Executor) RegisterPhase(loopID, phase string, fn PhaseFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phases[loopID] == nil {
		e.phases[loopID] = make(map[string]PhaseFunc)
	}
	e.phases[loopID][phase] = fn
}

// Catalog returns the catalog this executor runs from.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Execute runs the named loop against the context. It never returns an error
// across the boundary: an unknown loop id, a phase error, a phase panic or a
// phase timeout all produce a failed Result instead.
func (e *Executor) Execute(ctx context.Context, loopID string, jc *JudgmentContext) Result {
	start := e.now()

	def, ok := e.catalog.Get(loopID)
	if !ok {
		return Result{
			LoopID:    loopID,
			Success:   false,
			Duration:  e.now().Sub(start),
			ErrorText: fmt.Sprintf("loop %q not found in catalog", loopID),
		}
	}

	out := make(Output, len(def.Phases))
	completed := make([]string, 0, len(def.Phases))

	for _, phase := range def.Phases {
		if err := e.runPhase(ctx, def.ID, phase, jc, out); err != nil {
			return Result{
				LoopID:          def.ID,
				PhasesCompleted: completed,
				Success:         false,
				Output:          out,
				Duration:        e.now().Sub(start),
				ErrorText:       fmt.Sprintf("phase %s: %v", phase, err),
			}
		}
		completed = append(completed, phase)
	}

	return Result{
		LoopID:          def.ID,
		PhasesCompleted: completed,
		Success:         true,
		Output:          out,
		Duration:        e.now().Sub(start),
	}
}

// runPhase executes one phase under the timeout guard, converting panics
// into errors. The phase writes into a private scratch map that is merged
// into out only once the phase has returned; an abandoned phase keeps
// writing its scratch, never the map the caller holds.
func (e *Executor) runPhase(ctx context.Context, loopID, phase string, jc *JudgmentContext, out Output) (err error) {
	fn := e.lookupPhase(loopID, phase)

	if e.phaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.phaseTimeout)
		defer cancel()
	}

	scratch := make(Output)
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ctx, jc, scratch)
	}()

	select {
	case err = <-done:
		for k, v := range scratch {
			out[k] = v
		}
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("loop_timeout after %v", e.phaseTimeout)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("loop_timeout after %v", e.phaseTimeout)
		}
		return ctx.Err()
	}
}

func (e *Executor) lookupPhase(loopID, phase string) PhaseFunc {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if m := e.phases[loopID]; m != nil {
		if fn, ok := m[phase]; ok {
			return fn
		}
	}
	return stubPhase(phase)
}

// stubPhase is the default phase body: it records the phase as processed.
// Real phase content is supplied by the domain layer via RegisterPhase.
func stubPhase(phase string) PhaseFunc {
	return func(ctx context.Context, jc *JudgmentContext, out Output) error {
		out[phase] = map[string]any{
			"processed":  true,
			"complexity": jc.Complexity,
		}
		return nil
	}
}
