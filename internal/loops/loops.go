// Package loops owns the catalog of named reasoning procedures ("loops") and
// the executor that runs them against a judgment context. Each loop is an
// ordered list of phases; phase implementations are pluggable and supplied by
// the domain layer.
package loops

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Well-known loop IDs from the built-in catalog.
const (
	LoopFIST    = "FIST"    // structured analysis
	LoopRISE    = "RISE"    // failure recovery
	LoopDIR     = "DIR"     // direction setting
	LoopPIR     = "PIR"     // pressure/insight/release
	LoopMETA    = "META"    // self-reflection
	LoopFLOW    = "FLOW"    // rhythm/emotion
	LoopQUANTUM = "QUANTUM" // exploration under uncertainty
	LoopJUDGE   = "JUDGE"   // default judgment
)

// Definition describes one reasoning loop: its identity and ordered phases.
// Definitions are immutable once registered.
type Definition struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description" json:"description"`
	Phases      []string `yaml:"phases" json:"phases"`
}

// JudgmentContext is the situational feature vector driving loop selection
// and execution. Created per request, read-only afterwards.
type JudgmentContext struct {
	InputText           string   `json:"input_text"`
	Complexity          float64  `json:"complexity"`          // 0..1
	Uncertainty         float64  `json:"uncertainty"`         // 0..1
	EmotionalIntensity  float64  `json:"emotional_intensity"` // 0..1
	FailureDetected     bool     `json:"failure_detected"`
	MetaCognitionNeeded bool     `json:"meta_cognition_needed"`
	DomainHints         []string `json:"domain_hints,omitempty"`
}

// Catalog is the registry of loop definitions. It is populated at process
// start and stays open for registration (e.g. specialized loops added later).
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewCatalog returns a catalog pre-populated with the built-in eight loops.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]Definition)}
	for _, def := range builtinLoops() {
		c.defs[def.ID] = def
	}
	return c
}

// NewEmptyCatalog returns a catalog with no definitions.
func NewEmptyCatalog() *Catalog {
	return &Catalog{defs: make(map[string]Definition)}
}

// Register adds or replaces a loop definition.
func (c *Catalog) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("loop definition requires an id")
	}
	if len(def.Phases) == 0 {
		return fmt.Errorf("loop %q requires at least one phase", def.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.ID] = def
	return nil
}

// Get returns the definition for a loop id.
func (c *Catalog) Get(id string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	return def, ok
}

// IDs returns all registered loop ids in sorted order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// catalogFile mirrors the on-disk YAML catalog layout.
type catalogFile struct {
	Loops []Definition `yaml:"loops"`
}

// LoadCatalog reads loop definitions from a YAML file and registers them on
// top of the built-in catalog. A missing file is not an error: the built-in
// catalog already covers the cold-start case.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read loop catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse loop catalog: %w", err)
	}
	for _, def := range file.Loops {
		if err := c.Register(def); err != nil {
			return nil, fmt.Errorf("invalid loop in catalog %s: %w", path, err)
		}
	}
	return c, nil
}

// builtinLoops is the default eight-loop catalog.
func builtinLoops() []Definition {
	return []Definition{
		{
			ID:          LoopFIST,
			Description: "Structured analysis loop",
			Phases:      []string{"Frame", "Insight", "Strategy", "Tactics"},
		},
		{
			ID:          LoopRISE,
			Description: "Judgment failure recovery loop",
			Phases:      []string{"Reflect", "Improve", "Synthesize", "Evolve"},
		},
		{
			ID:          LoopDIR,
			Description: "Direction definition loop",
			Phases:      []string{"Mission", "Horizon", "Compass", "Ethics"},
		},
		{
			ID:          LoopPIR,
			Description: "Pressure, insight and release loop",
			Phases:      []string{"Pressure", "Insight", "Release"},
		},
		{
			ID:          LoopMETA,
			Description: "Self-awareness and reflection loop",
			Phases:      []string{"Awareness", "Dissonance", "Loop_Recall", "Re-alignment"},
		},
		{
			ID:          LoopFLOW,
			Description: "Rhythm-based emotional judgment loop",
			Phases:      []string{"Start", "Pulse", "Disrupt", "Resolve", "Echo"},
		},
		{
			ID:          LoopQUANTUM,
			Description: "Superposition and decision collapse loop",
			Phases:      []string{"Superposition", "Observation", "Collapse"},
		},
		{
			ID:          LoopJUDGE,
			Description: "Signature-based default judgment loop",
			Phases:      []string{"Input", "Match", "Evaluate", "Select", "Output"},
		},
	}
}
