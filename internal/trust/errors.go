package trust

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures. All are rejected synchronously at
// the boundary of the mutating call and leave state unchanged.
var (
	// ErrAgentNotFound is returned by any per-agent operation given an
	// unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidAttestation is returned at registration for a malformed or
	// self-contradictory attestation payload.
	ErrInvalidAttestation = errors.New("invalid attestation")

	// ErrInvalidWeights is returned when configured factor weights do not
	// sum to 1.0.
	ErrInvalidWeights = errors.New("factor weights must sum to 1.0")
)

// InvalidTierRangeError reports a tier table that leaves a gap, overlaps, or
// fails to cover [0, 1]. The previous table is always retained.
type InvalidTierRangeError struct {
	Reason string
}

func (e *InvalidTierRangeError) Error() string {
	return "invalid tier range: " + e.Reason
}

// PolicyMissingError reports an authorization check against an action with no
// policy entry. This is a configuration fault, distinct from a denial.
type PolicyMissingError struct {
	Action string
}

func (e *PolicyMissingError) Error() string {
	return fmt.Sprintf("no authorization policy configured for action %q", e.Action)
}

// ChainBrokenError reports the first receipt index at which chain
// verification failed, with the failing check. It is never auto-corrected.
type ChainBrokenError struct {
	Index  int
	Reason string
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("receipt chain broken at index %d: %s", e.Index, e.Reason)
}
