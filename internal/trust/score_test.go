package trust

import (
	"math"
	"testing"
)

const scoreTolerance = 1e-6

func TestIdentityScore_PresenceBased(t *testing.T) {
	// Fully described agent with 5 capabilities and no attestation material:
	// 0.2 + 0.2 + 0.2 + 0.2 + 0.2*(5/10) = 0.9.
	score, factors := IdentityScore(IdentityInput{
		HasName:       true,
		HasProvider:   true,
		HasConfigHash: true,
		Capabilities:  5,
	})
	if math.Abs(score-0.9) > scoreTolerance {
		t.Errorf("identity score = %v, want 0.9", score)
	}
	if factors["capabilities_count"] != 0.5 {
		t.Errorf("capabilities_count factor = %v, want 0.5", factors["capabilities_count"])
	}
	if factors["attestation_strength"] != 0.0 {
		t.Errorf("attestation_strength factor = %v, want 0", factors["attestation_strength"])
	}
}

func TestIdentityScore_EmptyAgent(t *testing.T) {
	score, _ := IdentityScore(IdentityInput{})
	if score != 0.0 {
		t.Errorf("identity score = %v, want 0", score)
	}
}

func TestIdentityScore_CapabilityCountCapped(t *testing.T) {
	// 25 capabilities still contribute at most 0.2 via the count term.
	score, factors := IdentityScore(IdentityInput{
		HasName:       true,
		HasProvider:   true,
		HasConfigHash: true,
		Capabilities:  25,
	})
	if factors["capabilities_count"] != 1.0 {
		t.Errorf("capabilities_count factor = %v, want 1.0", factors["capabilities_count"])
	}
	if math.Abs(score-1.0) > scoreTolerance {
		t.Errorf("identity score = %v, want 1.0", score)
	}
}

func TestIdentityScore_AttestationBonusTakesPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		attestation Attestation
		want        float64
	}{
		{"x509", X509Attestation{CertificateChain: []string{"cert"}}, 1.0},
		{"jwt", JWTSVIDAttestation{Token: "token"}, 0.9},
		{"api_key", APIKeyAttestation{KeyHash: "hash"}, 0.6},
		{"self_declared", SelfDeclaredAttestation{}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An otherwise empty agent: the attestation bonus alone decides.
			score, _ := IdentityScore(IdentityInput{Attestation: tt.attestation})
			if score != tt.want {
				t.Errorf("identity score = %v, want %v", score, tt.want)
			}
		})
	}
}

func TestConfigScore_NoChanges(t *testing.T) {
	score, _ := ConfigScore(0)
	if score != 1.0 {
		t.Errorf("config score = %v, want 1.0", score)
	}
}

func TestConfigScore_FiveChanges(t *testing.T) {
	score, _ := ConfigScore(5)
	if math.Abs(score-math.Exp(-0.5)) > scoreTolerance {
		t.Errorf("config score after 5 changes = %v, want e^-0.5 = %v", score, math.Exp(-0.5))
	}
}

func TestConfigScore_MonotonicallyNonIncreasing(t *testing.T) {
	prev := 2.0
	for changes := 0; changes <= 100; changes += 10 {
		score, _ := ConfigScore(changes)
		if score <= 0 || score > 1 {
			t.Errorf("config score at %d changes = %v, want in (0, 1]", changes, score)
		}
		if score >= prev {
			t.Errorf("config score at %d changes = %v, not below previous %v", changes, score, prev)
		}
		prev = score
	}
}

func TestBehaviorScore_EmptyHistory(t *testing.T) {
	score, factors := BehaviorScore(nil)
	if score != 0.0 {
		t.Errorf("behavior score = %v, want 0 (neutral)", score)
	}
	if factors["total_actions"] != 0 {
		t.Errorf("total_actions factor = %v, want 0", factors["total_actions"])
	}
}

func TestBehaviorScore_AllSuccesses(t *testing.T) {
	// Every outcome weighs 1.0, so the normalized average is exactly 1.0.
	history := make([]Outcome, 10)
	for i := range history {
		history[i] = OutcomeSuccess
	}
	score, factors := BehaviorScore(history)
	if math.Abs(score-1.0) > scoreTolerance {
		t.Errorf("behavior score = %v, want 1.0", score)
	}
	if factors["successes"] != 10 {
		t.Errorf("successes factor = %v, want 10", factors["successes"])
	}
}

func TestBehaviorScore_RecentViolationWeighsMost(t *testing.T) {
	// A violation at index 0 (most recent) followed by ten successes.
	history := []Outcome{OutcomeViolation}
	for i := 0; i < 10; i++ {
		history = append(history, OutcomeSuccess)
	}
	score, _ := BehaviorScore(history)

	var weighted, total float64
	for i := range history {
		w := math.Pow(0.95, float64(i))
		if i == 0 {
			weighted -= w
		} else {
			weighted += w
		}
		total += w
	}
	want := weighted / total
	if math.Abs(score-want) > scoreTolerance {
		t.Errorf("behavior score = %v, want %v", score, want)
	}

	allGood, _ := BehaviorScore(history[1:])
	if score >= allGood {
		t.Errorf("violation did not lower the score: %v >= %v", score, allGood)
	}
}

func TestBehaviorScore_CanGoNegative(t *testing.T) {
	// Factor-level scores are unclamped; only the composite has a floor.
	score, _ := BehaviorScore([]Outcome{OutcomeViolation, OutcomeViolation, OutcomeViolation})
	if math.Abs(score-(-1.0)) > scoreTolerance {
		t.Errorf("behavior score = %v, want -1.0", score)
	}
}

func TestCompositeScore_WeightedSum(t *testing.T) {
	// A freshly registered well-described agent: identity 0.9, config 1.0,
	// behavior 0.0.
	got := CompositeScore(DefaultWeights(), 0.9, 1.0, 0.0)
	if math.Abs(got-0.47) > scoreTolerance {
		t.Errorf("composite = %v, want 0.47", got)
	}
}

func TestCompositeScore_FloorNeverBreached(t *testing.T) {
	inputs := []struct{ identity, config, behavior float64 }{
		{0, 0, 0},
		{0, 0, -1},
		{1, 1, -1},
		{0.5, 0.5, -1},
	}
	for _, in := range inputs {
		got := CompositeScore(DefaultWeights(), in.identity, in.config, in.behavior)
		if got < 0.1 {
			t.Errorf("composite(%v, %v, %v) = %v, below floor 0.1",
				in.identity, in.config, in.behavior, got)
		}
	}
}

func TestCompositeScore_PerfectFactors(t *testing.T) {
	got := CompositeScore(DefaultWeights(), 0.9, 1.0, 1.0)
	if math.Abs(got-0.97) > scoreTolerance {
		t.Errorf("composite = %v, want 0.97", got)
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights rejected: %v", err)
	}
	bad := Weights{Identity: 0.5, Config: 0.5, Behavior: 0.5}
	if err := bad.Validate(); err == nil {
		t.Error("weights summing to 1.5 accepted")
	}
}

func TestParseOutcome(t *testing.T) {
	for _, valid := range []string{"success", "failure", "violation"} {
		if _, err := ParseOutcome(valid); err != nil {
			t.Errorf("ParseOutcome(%q) rejected: %v", valid, err)
		}
	}
	if _, err := ParseOutcome("partial"); err == nil {
		t.Error("ParseOutcome accepted unknown outcome")
	}
}
