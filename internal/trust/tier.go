package trust

import (
	"fmt"
	"math"
	"sort"
)

// Tier is one discrete trust level. The ordered set of tiers must partition
// [0, 1] with no gaps or overlaps.
type Tier struct {
	Tier        int      `json:"tier" yaml:"tier"`
	Name        string   `json:"name" yaml:"name"`
	MinScore    float64  `json:"min_score" yaml:"min_score"`
	MaxScore    float64  `json:"max_score" yaml:"max_score"`
	Description string   `json:"description" yaml:"description"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// DefaultTiers returns the standard four-tier table.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Tier:        0,
			Name:        "Untrusted",
			MinScore:    0.0,
			MaxScore:    0.2,
			Description: "Read-only access, no external actions",
			Permissions: []string{"read_config", "view_status"},
		},
		{
			Tier:        1,
			Name:        "Limited",
			MinScore:    0.2,
			MaxScore:    0.5,
			Description: "Basic actions, rate-limited",
			Permissions: []string{"read_config", "view_status", "send_notification", "read_data"},
		},
		{
			Tier:        2,
			Name:        "Trusted",
			MinScore:    0.5,
			MaxScore:    0.8,
			Description: "Most actions with some restrictions",
			Permissions: []string{
				"read_config", "view_status", "send_notification",
				"read_data", "write_data", "call_api", "send_email",
			},
		},
		{
			Tier:        3,
			Name:        "Privileged",
			MinScore:    0.8,
			MaxScore:    1.0,
			Description: "Full access, self-approval",
			Permissions: []string{"*"},
		},
	}
}

// TierTable is a validated, immutable tier configuration. Build one with
// NewTierTable; never mutate a table in place, swap in a new one.
type TierTable struct {
	tiers []Tier
}

const tierEpsilon = 1e-9

// NewTierTable validates that tiers form a total, non-overlapping,
// contiguous partition of [0, 1] sorted by lower bound, with indices 0..N-1.
// Returns an *InvalidTierRangeError otherwise.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, &InvalidTierRangeError{Reason: "no tiers defined"}
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	for i, t := range sorted {
		if t.Tier != i {
			return nil, &InvalidTierRangeError{
				Reason: fmt.Sprintf("tier at position %d has index %d, want %d", i, t.Tier, i),
			}
		}
		if t.MinScore >= t.MaxScore {
			return nil, &InvalidTierRangeError{
				Reason: fmt.Sprintf("tier %d has empty range [%v, %v]", t.Tier, t.MinScore, t.MaxScore),
			}
		}
	}
	if math.Abs(sorted[0].MinScore) > tierEpsilon {
		return nil, &InvalidTierRangeError{
			Reason: fmt.Sprintf("lowest tier starts at %v, want 0.0", sorted[0].MinScore),
		}
	}
	if math.Abs(sorted[len(sorted)-1].MaxScore-1.0) > tierEpsilon {
		return nil, &InvalidTierRangeError{
			Reason: fmt.Sprintf("highest tier ends at %v, want 1.0", sorted[len(sorted)-1].MaxScore),
		}
	}
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].MinScore - sorted[i-1].MaxScore
		if gap > tierEpsilon {
			return nil, &InvalidTierRangeError{
				Reason: fmt.Sprintf("gap between tier %d and tier %d (%v to %v)",
					i-1, i, sorted[i-1].MaxScore, sorted[i].MinScore),
			}
		}
		if gap < -tierEpsilon {
			return nil, &InvalidTierRangeError{
				Reason: fmt.Sprintf("overlap between tier %d and tier %d (%v to %v)",
					i-1, i, sorted[i].MinScore, sorted[i-1].MaxScore),
			}
		}
	}

	return &TierTable{tiers: sorted}, nil
}

// Resolve maps a composite score to its tier. Lower bounds are inclusive and
// upper bounds exclusive, except the highest tier which is inclusive at 1.0,
// so resolution is unique and total over [0, 1]. Scores outside [0, 1] clamp
// to the nearest tier.
func (t *TierTable) Resolve(score float64) Tier {
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if score >= t.tiers[i].MinScore {
			return t.tiers[i]
		}
	}
	return t.tiers[0]
}

// Get returns the tier with the given index.
func (t *TierTable) Get(index int) (Tier, bool) {
	if index < 0 || index >= len(t.tiers) {
		return Tier{}, false
	}
	return t.tiers[index], true
}

// Tiers returns a copy of the ordered tier definitions.
func (t *TierTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Len returns the number of tiers.
func (t *TierTable) Len() int { return len(t.tiers) }

// Permitted returns the action names permitted at the given tier index. A
// "*" entry grants full access and is returned as-is.
func (t *TierTable) Permitted(index int) ([]string, bool) {
	tier, ok := t.Get(index)
	if !ok {
		return nil, false
	}
	perms := make([]string, len(tier.Permissions))
	copy(perms, tier.Permissions)
	return perms, true
}
