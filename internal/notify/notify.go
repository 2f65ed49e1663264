// Package notify delivers engine events to registered webhooks and connected
// WebSocket clients. The engine hands events over synchronously; delivery
// happens on a single dispatch goroutine so events reach collaborators in
// mutation order.
package notify

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ssd-technologies/trustgate/internal/storage"
	"github.com/ssd-technologies/trustgate/internal/trust"
)

// Dispatcher implements trust.Notifier. Events are queued and delivered by
// Run; a full queue drops the event rather than blocking a mutation.
type Dispatcher struct {
	db     *storage.DB
	hub    *Hub
	client *http.Client
	events chan trust.Event
}

// NewDispatcher creates a dispatcher reading webhook configs from db and
// broadcasting to hub. Either may be nil to disable that delivery path.
func NewDispatcher(db *storage.DB, hub *Hub) *Dispatcher {
	return &Dispatcher{
		db:     db,
		hub:    hub,
		client: &http.Client{Timeout: 10 * time.Second},
		events: make(chan trust.Event, 256),
	}
}

// Notify enqueues an event for delivery. Never blocks the calling mutation.
func (d *Dispatcher) Notify(e trust.Event) {
	select {
	case d.events <- e:
	default:
		log.Printf("[notify] event queue full, dropping %s for agent %s", e.Type, e.AgentID)
	}
}

// Run consumes the event queue until ctx is cancelled. Call from a single
// goroutine; ordering across delivery targets follows enqueue order.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-d.events:
			d.dispatch(e)
		}
	}
}

func (d *Dispatcher) dispatch(e trust.Event) {
	if d.hub != nil {
		d.hub.Broadcast(e)
	}
	if d.db == nil {
		return
	}

	hooks, err := d.db.ListWebhooks()
	if err != nil {
		log.Printf("[notify] list webhooks: %v", err)
		return
	}
	for _, hook := range hooks {
		if !hook.Enabled || !subscribed(hook, e.Type) {
			continue
		}
		if err := d.deliver(hook, e); err != nil {
			log.Printf("[notify] webhook %s: %v", hook.ID, err)
		}
	}
}

// subscribed reports whether the hook wants this event type. An empty events
// list subscribes to everything.
func subscribed(hook storage.Webhook, t trust.EventType) bool {
	if len(hook.Events) == 0 {
		return true
	}
	for _, e := range hook.Events {
		if e == string(t) {
			return true
		}
	}
	return false
}
