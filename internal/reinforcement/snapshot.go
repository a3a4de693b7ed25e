package reinforcement

import (
	"fmt"
	"time"
)

// =============================================================================
// SNAPSHOT - FLAT, HUMAN-READABLE PERSISTED FORM
// =============================================================================

// EntrySnapshot is the persisted form of one (state, action) cell.
type EntrySnapshot struct {
	Value      float64 `json:"value"`
	Uses       int     `json:"uses"`
	LastReward float64 `json:"last_reward"`
}

// Snapshot is the persisted form of the whole table: a flat mapping from the
// composite "signature|complexity|uncertainty|emotion|loop" key to its cell,
// plus usage counters. Safe to delete; a missing snapshot means cold start.
type Snapshot struct {
	Entries         map[string]EntrySnapshot `json:"entries"`
	TotalUpdates    int                      `json:"total_updates"`
	PositiveRewards int                      `json:"positive_rewards"`
	SavedAt         time.Time                `json:"saved_at"`
}

// Snapshot captures the current table.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Entries:         make(map[string]EntrySnapshot),
		TotalUpdates:    e.updates,
		PositiveRewards: e.positive,
		SavedAt:         time.Now().UTC(),
	}
	for state, actions := range e.table {
		for loopID, ent := range actions {
			snap.Entries[snapshotKey(state, loopID)] = EntrySnapshot{
				Value:      ent.Value,
				Uses:       ent.Uses,
				LastReward: ent.LastReward,
			}
		}
	}
	return snap
}

// Restore replaces the table with the snapshot contents. A malformed key or
// an out-of-range value fails the whole restore so a corrupt snapshot never
// half-loads; the caller treats that as a learning-pipeline error and starts
// cold.
func (e *Engine) Restore(snap Snapshot) error {
	table := make(map[StateKey]map[string]*entry, len(snap.Entries))
	for key, es := range snap.Entries {
		state, loopID, err := parseSnapshotKey(key)
		if err != nil {
			return err
		}
		if es.Value < e.cfg.MinValue || es.Value > e.cfg.MaxValue {
			return fmt.Errorf("q-table value %v for %q outside [%v,%v]",
				es.Value, key, e.cfg.MinValue, e.cfg.MaxValue)
		}
		actions := table[state]
		if actions == nil {
			actions = make(map[string]*entry)
			table[state] = actions
		}
		actions[loopID] = &entry{Value: es.Value, Uses: es.Uses, LastReward: es.LastReward}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.table = table
	e.updates = snap.TotalUpdates
	e.positive = snap.PositiveRewards
	return nil
}
