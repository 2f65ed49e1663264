package trust

import (
	"fmt"
	"math"
)

// CompositeFloor is the sybil-resistance floor: no agent may report a
// composite score below it, regardless of factor inputs.
const compositeFloor = 0.1

// behaviorDecay is the per-index recency decay applied to outcome history,
// most recent first.
const behaviorDecay = 0.95

// Per-outcome weights for the behavior score.
const (
	successWeight   = 1.0
	failureWeight   = 0.3
	violationWeight = -1.0
)

// Outcome is the recorded result of a single agent action.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeViolation Outcome = "violation"
)

// ParseOutcome validates an outcome label from the wire.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeSuccess, OutcomeFailure, OutcomeViolation:
		return Outcome(s), nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Weights are the factor weights for the composite score. They must sum to
// 1.0; anything else is rejected as a configuration error.
type Weights struct {
	Identity float64 `json:"identity" yaml:"identity"`
	Config   float64 `json:"config" yaml:"config"`
	Behavior float64 `json:"behavior" yaml:"behavior"`
}

// DefaultWeights returns the standard factor weighting.
func DefaultWeights() Weights {
	return Weights{Identity: 0.3, Config: 0.2, Behavior: 0.5}
}

// Validate checks that the weights sum to 1.0 (within floating-point
// tolerance).
func (w Weights) Validate() error {
	sum := w.Identity + w.Config + w.Behavior
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: got %v", ErrInvalidWeights, sum)
	}
	return nil
}

// IdentityInput is everything the identity scorer looks at.
type IdentityInput struct {
	HasName       bool
	HasProvider   bool
	HasConfigHash bool
	Capabilities  int
	Attestation   Attestation // nil when no material was supplied
}

// IdentityScore computes the identity factor. When attestation material is
// present the attestation-type bonus is the score; otherwise a presence-based
// score is used: 0.2 for each of name, provider, config hash, and a non-empty
// capability set, plus 0.2 x min(capabilities/10, 1). Output is clamped to
// [0, 1].
func IdentityScore(in IdentityInput) (float64, map[string]float64) {
	factors := map[string]float64{
		"has_name":           boolSignal(in.HasName),
		"has_provider":       boolSignal(in.HasProvider),
		"has_config_hash":    boolSignal(in.HasConfigHash),
		"has_capabilities":   boolSignal(in.Capabilities > 0),
		"capabilities_count": math.Min(float64(in.Capabilities)/10.0, 1.0),
	}

	if in.Attestation != nil {
		strength := in.Attestation.Strength()
		factors["attestation_strength"] = strength
		return clamp01(strength), factors
	}
	factors["attestation_strength"] = 0.0

	score := 0.2*factors["has_name"] +
		0.2*factors["has_provider"] +
		0.2*factors["has_config_hash"] +
		0.2*factors["has_capabilities"] +
		0.2*factors["capabilities_count"]
	return clamp01(score), factors
}

// ConfigScore computes the configuration-stability factor from the running
// count of distinct config-hash changes: e^(-0.1 x changes). Always in
// (0, 1], equal to 1.0 at zero changes.
func ConfigScore(changes int) (float64, map[string]float64) {
	score := math.Exp(-0.1 * float64(changes))
	factors := map[string]float64{
		"config_changes":  float64(changes),
		"stability_score": score,
	}
	return score, factors
}

// BehaviorScore computes the behavior factor from the agent's outcome
// history, most recent first. Each outcome contributes its weight scaled by
// 0.95^index, normalized by the total recency weight. Empty history scores
// 0.0 (neutral). The result is deliberately NOT clamped: a recent run of
// violations can drive it negative, and only the composite floor applies.
func BehaviorScore(history []Outcome) (float64, map[string]float64) {
	factors := map[string]float64{
		"total_actions": float64(len(history)),
		"successes":     0,
		"failures":      0,
		"violations":    0,
	}
	if len(history) == 0 {
		factors["success_rate"] = 0.0
		return 0.0, factors
	}

	var weighted, totalWeight float64
	for i, outcome := range history {
		w := math.Pow(behaviorDecay, float64(i))
		switch outcome {
		case OutcomeSuccess:
			weighted += w * successWeight
			factors["successes"]++
		case OutcomeFailure:
			weighted += w * failureWeight
			factors["failures"]++
		case OutcomeViolation:
			weighted += w * violationWeight
			factors["violations"]++
		}
		totalWeight += w
	}

	score := weighted / totalWeight
	factors["success_rate"] = factors["successes"] / float64(len(history))
	factors["weighted_score"] = score
	return score, factors
}

// CompositeScore combines the three factor scores under w and applies the
// sybil-resistance floor of 0.1.
func CompositeScore(w Weights, identity, config, behavior float64) float64 {
	composite := w.Identity*identity + w.Config*config + w.Behavior*behavior
	return math.Max(compositeFloor, composite)
}

func boolSignal(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
