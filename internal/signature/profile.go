// Package signature holds the behavioral profiles ("signatures") that drive
// loop selection, and the selector that maps a signature plus a judgment
// context to a loop. Profiles are long-lived shared state: every request
// reads them and the adaptive learning engine mutates them, so all access
// goes through the Registry, which serializes per-signature writes.
package signature

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultID is the profile used when a caller names an unknown signature.
// Unknown ids never fail a request.
const DefaultID = "Echo-Aurora"

// Profile is one named behavioral profile. Sensitivity scalars stay within
// [0,1]; the Registry clamps every adjustment.
type Profile struct {
	ID                 string   `yaml:"id" json:"id"`
	Name               string   `yaml:"name" json:"name"`
	EmotionSensitivity float64  `yaml:"emotion_sensitivity" json:"emotion_sensitivity"`
	MetaSensitivity    float64  `yaml:"meta_sensitivity" json:"meta_sensitivity"`
	PrimaryStrategies  []string `yaml:"primary_strategies" json:"primary_strategies"`
}

// Clone returns a copy safe for the caller to keep.
func (p Profile) Clone() Profile {
	cp := p
	cp.PrimaryStrategies = append([]string(nil), p.PrimaryStrategies...)
	return cp
}

// profileFile mirrors the on-disk signatures.yaml layout.
type profileFile struct {
	Signatures []Profile `yaml:"signatures"`
}

// LoadProfiles reads signature profiles from a YAML file. A missing file
// yields the built-in roster (cold start goes to defaults).
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultProfiles(), nil
		}
		return nil, fmt.Errorf("failed to read signature profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse signature profiles: %w", err)
	}
	if len(file.Signatures) == 0 {
		return defaultProfiles(), nil
	}
	for i, p := range file.Signatures {
		if p.ID == "" {
			return nil, fmt.Errorf("signature %d in %s has no id", i, path)
		}
	}
	return file.Signatures, nil
}

// defaultProfiles is the built-in signature roster.
func defaultProfiles() []Profile {
	return []Profile{
		{
			ID:                 "Echo-Aurora",
			Name:               "Compassionate Nurturer",
			EmotionSensitivity: 0.8,
			MetaSensitivity:    0.6,
			PrimaryStrategies:  []string{"empathetic", "supportive"},
		},
		{
			ID:                 "Echo-Phoenix",
			Name:               "Transformative Catalyst",
			EmotionSensitivity: 0.6,
			MetaSensitivity:    0.7,
			PrimaryStrategies:  []string{"transformative", "adaptive"},
		},
		{
			ID:                 "Echo-Sage",
			Name:               "Analytical Strategist",
			EmotionSensitivity: 0.4,
			MetaSensitivity:    0.9,
			PrimaryStrategies:  []string{"analytical", "systematic"},
		},
		{
			ID:                 "Echo-Companion",
			Name:               "Steady Collaborator",
			EmotionSensitivity: 0.7,
			MetaSensitivity:    0.5,
			PrimaryStrategies:  []string{"collaborative", "supportive"},
		},
	}
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
