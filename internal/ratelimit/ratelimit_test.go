package ratelimit

import (
	"testing"
	"time"
)

func TestKeyed_AllowsUpToRate(t *testing.T) {
	k := NewKeyed(5, time.Minute)
	for i := 0; i < 5; i++ {
		if !k.Allow("agent-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if k.Allow("agent-a") {
		t.Fatal("6th request should be denied")
	}
}

func TestKeyed_KeysAreIndependent(t *testing.T) {
	k := NewKeyed(1, time.Minute)
	if !k.Allow("agent-a") {
		t.Fatal("first request for agent-a should be allowed")
	}
	if !k.Allow("agent-b") {
		t.Fatal("first request for agent-b should be allowed")
	}
	if k.Allow("agent-a") {
		t.Fatal("second request for agent-a should be denied")
	}
}

func TestKeyed_ResetsAfterWindow(t *testing.T) {
	k := NewKeyed(2, 50*time.Millisecond)
	k.Allow("agent-a")
	k.Allow("agent-a")
	if k.Allow("agent-a") {
		t.Fatal("3rd should be denied")
	}
	time.Sleep(60 * time.Millisecond)
	if !k.Allow("agent-a") {
		t.Fatal("after window reset should be allowed")
	}
}

func TestKeyed_PruneDropsIdleWindows(t *testing.T) {
	k := NewKeyed(10, 10*time.Millisecond)
	k.Allow("agent-a")
	time.Sleep(20 * time.Millisecond)
	k.Prune()
	if len(k.windows) != 0 {
		t.Fatalf("windows after prune = %d, want 0", len(k.windows))
	}
}
