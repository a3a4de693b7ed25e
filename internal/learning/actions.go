package learning

import (
	"fmt"
	"sort"
)

// =============================================================================
// CORRECTIVE ACTIONS - CLOSED TAGGED UNION
// =============================================================================

// ActionKind enumerates the closed set of corrective action types.
type ActionKind string

const (
	ActionEvolveSignature   ActionKind = "evolve_signature"
	ActionAdjustSensitivity ActionKind = "adjust_sensitivity"
	ActionCreateSignature   ActionKind = "create_specialized_signature"
	ActionSpecializeContext ActionKind = "specialize_context"
	ActionFineTune          ActionKind = "fine_tune"
)

// EvolveParams drives an evolve-signature action.
type EvolveParams struct {
	Strength   float64  `json:"strength"`
	FocusAreas []string `json:"focus_areas"`
}

// AdjustParams drives a sensitivity adjustment.
type AdjustParams struct {
	Delta    float64 `json:"delta"`
	Increase bool    `json:"increase"`
}

// CreateSignatureParams drives creation of a specialized signature.
type CreateSignatureParams struct {
	BaseSignature string `json:"base_signature"`
	Focus         string `json:"focus"`
}

// SpecializeParams drives a context specialization.
type SpecializeParams struct {
	Area string `json:"area"`
}

// FineTuneParams drives a minor tuning pass.
type FineTuneParams struct {
	Magnitude    float64 `json:"magnitude"`
	TargetMetric string  `json:"target_metric"`
}

// Action is one typed corrective instruction. Exactly the params field
// matching Kind is set; the rest are nil.
type Action struct {
	ID                  string     `json:"id"`
	Kind                ActionKind `json:"kind"`
	Target              string     `json:"target"` // signature id the action mutates
	Priority            int        `json:"priority"`
	ExpectedImprovement float64    `json:"expected_improvement"`

	Evolve     *EvolveParams          `json:"evolve,omitempty"`
	Adjust     *AdjustParams          `json:"adjust,omitempty"`
	Create     *CreateSignatureParams `json:"create,omitempty"`
	Specialize *SpecializeParams      `json:"specialize,omitempty"`
	FineTune   *FineTuneParams        `json:"fine_tune,omitempty"`
}

// GenerateActions maps failure patterns to corrective actions by severity
// tier and returns them sorted by descending priority.
func GenerateActions(patterns []FailurePattern) []Action {
	var actions []Action
	for _, p := range patterns {
		switch {
		case p.Severity > 0.8:
			actions = append(actions, criticalActions(p)...)
		case p.Severity > 0.5:
			actions = append(actions, moderateActions(p)...)
		default:
			actions = append(actions, minorActions(p)...)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})
	return actions
}

func criticalActions(p FailurePattern) []Action {
	actions := []Action{{
		ID:                  fmt.Sprintf("evolve_%s", p.ID),
		Kind:                ActionEvolveSignature,
		Target:              p.SignatureID,
		Priority:            10,
		ExpectedImprovement: 0.6,
		Evolve:              &EvolveParams{Strength: 0.8, FocusAreas: []string{p.Reason}},
	}}

	if p.Frequency > 10 {
		actions = append(actions, Action{
			ID:                  fmt.Sprintf("create_%s", p.ID),
			Kind:                ActionCreateSignature,
			Target:              p.SignatureID + "_adapted",
			Priority:            9,
			ExpectedImprovement: 0.8,
			Create:              &CreateSignatureParams{BaseSignature: p.SignatureID, Focus: p.Reason},
		})
	}
	return actions
}

func moderateActions(p FailurePattern) []Action {
	return []Action{
		{
			ID:                  fmt.Sprintf("adjust_%s", p.ID),
			Kind:                ActionAdjustSensitivity,
			Target:              p.SignatureID,
			Priority:            7,
			ExpectedImprovement: 0.4,
			Adjust:              &AdjustParams{Delta: 0.1, Increase: p.Reason == ReasonLowConfidence},
		},
		{
			ID:                  fmt.Sprintf("specialize_%s", p.ID),
			Kind:                ActionSpecializeContext,
			Target:              p.SignatureID,
			Priority:            6,
			ExpectedImprovement: 0.5,
			Specialize:          &SpecializeParams{Area: p.Reason},
		},
	}
}

func minorActions(p FailurePattern) []Action {
	return []Action{{
		ID:                  fmt.Sprintf("finetune_%s", p.ID),
		Kind:                ActionFineTune,
		Target:              p.SignatureID,
		Priority:            3,
		ExpectedImprovement: 0.2,
		FineTune:            &FineTuneParams{Magnitude: 0.05, TargetMetric: p.Reason},
	}}
}
