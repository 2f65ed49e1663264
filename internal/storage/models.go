package storage

// Webhook is a registered event-delivery target. Events is the set of event
// types the target subscribes to; empty means all events.
type Webhook struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Secret    string   `json:"-"`
	Enabled   bool     `json:"enabled"`
	CreatedAt int64    `json:"created_at"`
}

// Stats is the dashboard summary across all agents.
type Stats struct {
	TotalAgents       int            `json:"total_agents"`
	TotalActions      int            `json:"total_actions"`
	AgentsByTier      map[string]int `json:"agents_by_tier"`
	RecentActions     int            `json:"recent_actions"`
	ScoreDistribution map[string]int `json:"trust_score_distribution"`
}
