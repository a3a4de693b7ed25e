package signature

import (
	"echojudge/internal/loops"
)

// =============================================================================
// SELECTOR - DETERMINISTIC SIGNATURE x CONTEXT -> LOOP MAPPING
// =============================================================================

// Selector maps a signature and a judgment context to the most appropriate
// loop via a fixed priority ladder, falling back to the profile's strategy
// preferences. Selection is deterministic; the reinforcement engine may
// override it upstream.
type Selector struct {
	registry *Registry
}

// NewSelector creates a selector over the registry.
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// SelectLoop applies the priority ladder, first match wins:
// failure recovery, high complexity, high emotion, high uncertainty,
// meta-cognition, then strategy preference, then the default judgment loop.
func (s *Selector) SelectLoop(signatureID string, jc *loops.JudgmentContext) string {
	switch {
	case jc.FailureDetected:
		return loops.LoopRISE
	case jc.Complexity > 0.7:
		return loops.LoopFIST
	case jc.EmotionalIntensity > 0.6:
		return loops.LoopFLOW
	case jc.Uncertainty > 0.8:
		return loops.LoopQUANTUM
	case jc.MetaCognitionNeeded:
		return loops.LoopMETA
	}

	profile := s.registry.Get(signatureID)
	for _, strategy := range profile.PrimaryStrategies {
		switch strategy {
		case "analytical":
			return loops.LoopFIST
		case "empathetic":
			return loops.LoopFLOW
		case "transformative":
			return loops.LoopRISE
		}
	}
	return loops.LoopJUDGE
}

// Sensitivity returns the signature's compatibility with a loop as a fixed
// weighting of its emotion and meta sensitivity. Used for scoring, never for
// gating a selection.
func (s *Selector) Sensitivity(signatureID, loopID string) float64 {
	profile := s.registry.Get(signatureID)
	emotion := profile.EmotionSensitivity
	meta := profile.MetaSensitivity

	switch loopID {
	case loops.LoopFIST:
		return meta * 0.8
	case loops.LoopRISE:
		return emotion * 0.7
	case loops.LoopDIR:
		return meta * 0.6
	case loops.LoopPIR:
		return emotion * 0.9
	case loops.LoopMETA:
		return meta
	case loops.LoopFLOW:
		return emotion
	case loops.LoopQUANTUM:
		return meta * 0.5
	case loops.LoopJUDGE:
		return (emotion + meta) / 2
	default:
		return 0.5
	}
}
