// Package store persists the learned state as human-readable JSON snapshots:
// the reinforcement value table and the per-signature adaptation state. Both
// files are safe to delete; a missing file is a cold start, not an error.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"echojudge/internal/learning"
	"echojudge/internal/reinforcement"
)

const (
	qtableFile       = "qtable.json"
	signaturesFile   = "signatures.json"
	observationsFile = "observations.json"
)

// SignatureState is the persisted adaptation state for one signature.
type SignatureState struct {
	EmotionSensitivity float64   `json:"emotion_sensitivity"`
	MetaSensitivity    float64   `json:"meta_sensitivity"`
	CooldownUntil      time.Time `json:"cooldown_until,omitempty"`
	Adaptations        int       `json:"adaptations"`
}

// Store reads and writes the snapshot files under one directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveQTable writes the value-table snapshot.
func (s *Store) SaveQTable(snap reinforcement.Snapshot) error {
	return s.writeJSON(qtableFile, snap)
}

// LoadQTable reads the value-table snapshot. ok is false when no snapshot
// exists yet.
func (s *Store) LoadQTable() (snap reinforcement.Snapshot, ok bool, err error) {
	err = s.readJSON(qtableFile, &snap)
	if err != nil {
		if os.IsNotExist(err) {
			return reinforcement.Snapshot{}, false, nil
		}
		return reinforcement.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SaveSignatures writes the per-signature adaptation snapshot.
func (s *Store) SaveSignatures(states map[string]SignatureState) error {
	return s.writeJSON(signaturesFile, states)
}

// LoadSignatures reads the per-signature adaptation snapshot.
func (s *Store) LoadSignatures() (map[string]SignatureState, bool, error) {
	states := make(map[string]SignatureState)
	err := s.readJSON(signaturesFile, &states)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return states, true, nil
}

// SaveObservations writes the evolution-candidate observations so learning
// cycles can span CLI invocations.
func (s *Store) SaveObservations(observations []learning.Observation) error {
	return s.writeJSON(observationsFile, observations)
}

// LoadObservations reads the persisted observations.
func (s *Store) LoadObservations() ([]learning.Observation, bool, error) {
	var observations []learning.Observation
	err := s.readJSON(observationsFile, &observations)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return observations, true, nil
}

// writeJSON marshals indented JSON and renames it into place so a crashed
// write never leaves a half-written snapshot.
func (s *Store) writeJSON(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

func (s *Store) readJSON(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}
