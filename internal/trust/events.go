package trust

import "time"

// EventType labels a notification event.
type EventType string

const (
	EventTrustChanged        EventType = "trust_changed"
	EventTierChanged         EventType = "tier_changed"
	EventAuthorizationDenied EventType = "authorization_denied"
	EventReceiptChainBroken  EventType = "receipt_chain_broken"
)

// Event is the payload handed to the notification collaborator. The engine
// fires the hook exactly once per triggering mutation, in the same serialized
// order as the mutation itself for each agent.
type Event struct {
	Type      EventType      `json:"type"`
	AgentID   string         `json:"agent_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier receives engine events synchronously. Delivery (webhook calls,
// WebSocket broadcast) is entirely the implementer's responsibility; a
// Notifier must not block on external I/O.
type Notifier interface {
	Notify(Event)
}
