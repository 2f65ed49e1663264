package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ssd-technologies/trustgate/internal/storage"
	"github.com/ssd-technologies/trustgate/internal/trust"
)

func TestDeliver(t *testing.T) {
	type received struct {
		event     trust.Event
		eventType string
		signature string
		body      []byte
	}
	got := make(chan received, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var e trust.Event
		if err := json.Unmarshal(body, &e); err != nil {
			t.Errorf("decode delivered event: %v", err)
		}
		got <- received{
			event:     e,
			eventType: r.Header.Get("X-Trustgate-Event"),
			signature: r.Header.Get("X-Trustgate-Signature"),
			body:      body,
		}
	}))
	defer ts.Close()

	d := NewDispatcher(nil, nil)
	hook := storage.Webhook{
		ID:      "wh-1",
		URL:     ts.URL,
		Secret:  "s3cret",
		Enabled: true,
	}
	event := trust.Event{
		Type:      trust.EventTierChanged,
		AgentID:   "agent-1",
		Timestamp: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		Data:      map[string]any{"old_tier": float64(1), "tier": float64(2)},
	}
	if err := d.deliver(hook, event); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	r := <-got
	if r.eventType != "tier_changed" {
		t.Errorf("event header = %q", r.eventType)
	}
	if r.event.AgentID != "agent-1" || r.event.Type != trust.EventTierChanged {
		t.Errorf("delivered event = %+v", r.event)
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(r.body)
	if want := hex.EncodeToString(mac.Sum(nil)); r.signature != want {
		t.Errorf("signature = %q, want %q", r.signature, want)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	got := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Trustgate-Signature")
	}))
	defer ts.Close()

	d := NewDispatcher(nil, nil)
	hook := storage.Webhook{ID: "wh-1", URL: ts.URL, Enabled: true}
	if err := d.deliver(hook, trust.Event{Type: trust.EventTrustChanged}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sig := <-got; sig != "" {
		t.Errorf("unexpected signature header %q", sig)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	d := NewDispatcher(nil, nil)
	hook := storage.Webhook{ID: "wh-1", URL: ts.URL, Enabled: true}
	if err := d.deliver(hook, trust.Event{Type: trust.EventTrustChanged}); err == nil {
		t.Error("deliver to failing endpoint succeeded")
	}
}

func TestSubscribed(t *testing.T) {
	all := storage.Webhook{}
	if !subscribed(all, trust.EventTierChanged) {
		t.Error("empty events list should subscribe to everything")
	}

	scoped := storage.Webhook{Events: []string{"tier_changed"}}
	if !subscribed(scoped, trust.EventTierChanged) {
		t.Error("listed event not subscribed")
	}
	if subscribed(scoped, trust.EventTrustChanged) {
		t.Error("unlisted event subscribed")
	}
}

func TestNotify_FullQueueDoesNotBlock(t *testing.T) {
	d := NewDispatcher(nil, nil)

	// Nothing is draining the queue; overfilling it must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 512; i++ {
			d.Notify(trust.Event{Type: trust.EventTrustChanged, AgentID: "a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}
