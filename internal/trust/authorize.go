package trust

import "fmt"

// Policy is the authorization requirement for one action.
type Policy struct {
	RequiredTier  int     `json:"required_tier" yaml:"tier"`
	RequiredScore float64 `json:"required_score" yaml:"score"`
}

// PolicyTable maps action names to their authorization requirements. An
// action absent from the table is a configuration fault (PolicyMissing), not
// a denial.
type PolicyTable map[string]Policy

// DefaultPolicies returns the standard action policy table.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		"read_config":       {RequiredTier: 0, RequiredScore: 0.0},
		"view_status":       {RequiredTier: 0, RequiredScore: 0.0},
		"send_notification": {RequiredTier: 1, RequiredScore: 0.2},
		"read_data":         {RequiredTier: 1, RequiredScore: 0.2},
		"write_data":        {RequiredTier: 2, RequiredScore: 0.5},
		"call_api":          {RequiredTier: 2, RequiredScore: 0.5},
		"send_email":        {RequiredTier: 2, RequiredScore: 0.5},
		"delete_data":       {RequiredTier: 3, RequiredScore: 0.8},
		"delete_database":   {RequiredTier: 3, RequiredScore: 0.9},
		"admin_action":      {RequiredTier: 3, RequiredScore: 0.85},
	}
}

// Decision is the result of one authorization check. Denial is a normal
// decision value, not an error.
type Decision struct {
	Allowed       bool    `json:"allowed"`
	AgentID       string  `json:"agent_id"`
	Action        string  `json:"action"`
	CurrentTier   int     `json:"current_tier"`
	RequiredTier  int     `json:"required_tier"`
	CurrentScore  float64 `json:"current_score"`
	RequiredScore float64 `json:"required_score"`
	Reason        string  `json:"reason"`
}

// Decide evaluates one action against the agent's current tier and composite
// score. The agent is allowed only if currentTier >= requiredTier AND
// currentScore >= requiredScore; on denial the reason names every unmet
// condition and its gap.
func Decide(agentID, action string, currentTier int, currentScore float64, p Policy) Decision {
	d := Decision{
		AgentID:       agentID,
		Action:        action,
		CurrentTier:   currentTier,
		RequiredTier:  p.RequiredTier,
		CurrentScore:  currentScore,
		RequiredScore: p.RequiredScore,
	}

	tierOK := currentTier >= p.RequiredTier
	scoreOK := currentScore >= p.RequiredScore
	if tierOK && scoreOK {
		d.Allowed = true
		d.Reason = "authorized"
		return d
	}

	switch {
	case !tierOK && !scoreOK:
		d.Reason = fmt.Sprintf(
			"insufficient trust tier (need tier %d, have %d); insufficient trust score (need %.2f, have %.2f)",
			p.RequiredTier, currentTier, p.RequiredScore, currentScore)
	case !tierOK:
		d.Reason = fmt.Sprintf("insufficient trust tier (need tier %d, have %d)",
			p.RequiredTier, currentTier)
	default:
		d.Reason = fmt.Sprintf("insufficient trust score (need %.2f, have %.2f)",
			p.RequiredScore, currentScore)
	}
	return d
}
