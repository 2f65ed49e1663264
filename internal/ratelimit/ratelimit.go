// Package ratelimit provides fixed-window request limiting, keyed by agent id.
package ratelimit

import (
	"sync"
	"time"
)

// window tracks one key's request count in the current fixed window.
type window struct {
	count int
	start time.Time
}

// Keyed is a fixed-window rate limiter with an independent window per key.
type Keyed struct {
	mu      sync.Mutex
	windows map[string]*window
	rate    int
	per     time.Duration
}

// NewKeyed creates a limiter that allows rate requests per key per window.
func NewKeyed(rate int, per time.Duration) *Keyed {
	return &Keyed{
		windows: make(map[string]*window),
		rate:    rate,
		per:     per,
	}
}

// Allow returns true if a request for key is within its rate limit.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	w, ok := k.windows[key]
	if !ok || now.Sub(w.start) > k.per {
		w = &window{start: now}
		k.windows[key] = w
	}
	w.count++
	return w.count <= k.rate
}

// Prune drops windows idle for longer than one full window, bounding memory
// for long-running processes with many one-off keys.
func (k *Keyed) Prune() {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	for key, w := range k.windows {
		if now.Sub(w.start) > k.per {
			delete(k.windows, key)
		}
	}
}
