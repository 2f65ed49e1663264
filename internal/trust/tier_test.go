package trust

import (
	"errors"
	"testing"
)

func TestNewTierTable_DefaultIsValid(t *testing.T) {
	if _, err := NewTierTable(DefaultTiers()); err != nil {
		t.Fatalf("default tiers rejected: %v", err)
	}
}

func TestNewTierTable_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
	}{
		{"empty", nil},
		{"gap", []Tier{
			{Tier: 0, Name: "a", MinScore: 0.0, MaxScore: 0.4},
			{Tier: 1, Name: "b", MinScore: 0.5, MaxScore: 1.0},
		}},
		{"overlap", []Tier{
			{Tier: 0, Name: "a", MinScore: 0.0, MaxScore: 0.6},
			{Tier: 1, Name: "b", MinScore: 0.5, MaxScore: 1.0},
		}},
		{"does not start at zero", []Tier{
			{Tier: 0, Name: "a", MinScore: 0.1, MaxScore: 1.0},
		}},
		{"does not end at one", []Tier{
			{Tier: 0, Name: "a", MinScore: 0.0, MaxScore: 0.9},
		}},
		{"empty range", []Tier{
			{Tier: 0, Name: "a", MinScore: 0.0, MaxScore: 0.0},
			{Tier: 1, Name: "b", MinScore: 0.0, MaxScore: 1.0},
		}},
		{"bad index", []Tier{
			{Tier: 0, Name: "a", MinScore: 0.0, MaxScore: 0.5},
			{Tier: 2, Name: "b", MinScore: 0.5, MaxScore: 1.0},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTierTable(tt.tiers)
			var rangeErr *InvalidTierRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("err = %v, want InvalidTierRangeError", err)
			}
		})
	}
}

func TestTierTable_Resolve(t *testing.T) {
	table, err := NewTierTable(DefaultTiers())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		score float64
		want  int
	}{
		{0.0, 0},
		{0.1, 0},
		{0.19, 0},
		{0.2, 1}, // boundary belongs to the higher tier
		{0.47, 1},
		{0.5, 2}, // lower-bound-inclusive: Trusted, not Limited
		{0.79, 2},
		{0.8, 3},
		{0.97, 3},
		{1.0, 3}, // top tier includes 1.0
	}
	for _, tt := range tests {
		if got := table.Resolve(tt.score).Tier; got != tt.want {
			t.Errorf("Resolve(%v) = tier %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestTierTable_ResolutionIsTotal(t *testing.T) {
	table, err := NewTierTable(DefaultTiers())
	if err != nil {
		t.Fatal(err)
	}
	// Every score in [0, 1] lands in exactly one tier.
	for i := 0; i <= 1000; i++ {
		score := float64(i) / 1000.0
		tier := table.Resolve(score)
		inRange := score >= tier.MinScore && (score < tier.MaxScore || tier.Tier == table.Len()-1)
		if !inRange {
			t.Fatalf("Resolve(%v) = tier %d [%v, %v], score outside range",
				score, tier.Tier, tier.MinScore, tier.MaxScore)
		}
	}
}

func TestTierTable_Permitted(t *testing.T) {
	table, err := NewTierTable(DefaultTiers())
	if err != nil {
		t.Fatal(err)
	}

	perms, ok := table.Permitted(0)
	if !ok || len(perms) != 2 {
		t.Errorf("tier 0 permissions = %v, want 2 entries", perms)
	}
	perms, ok = table.Permitted(3)
	if !ok || len(perms) != 1 || perms[0] != "*" {
		t.Errorf("tier 3 permissions = %v, want [*]", perms)
	}
	if _, ok := table.Permitted(4); ok {
		t.Error("Permitted(4) succeeded for nonexistent tier")
	}
}
