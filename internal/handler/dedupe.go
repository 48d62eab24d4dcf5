package handler

import (
	"sync"
	"time"

	"github.com/mwendachronicles/mpesa-lambda/internal/daraja"
)

// dedupeGuard remembers recent gateway acknowledgements keyed by
// reference+amount+phone so a client retry against a warm container replays
// the original acknowledgement instead of charging twice. State is
// per-process: a retry landing on a different container is not covered, which
// would need shared storage the gateway's missing idempotency key can't
// substitute for.
type dedupeGuard struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]dedupeEntry
}

type dedupeEntry struct {
	resp     *daraja.PushResponse
	storedAt time.Time
}

func newDedupeGuard(window time.Duration) *dedupeGuard {
	return &dedupeGuard{
		window:  window,
		now:     time.Now,
		entries: make(map[string]dedupeEntry),
	}
}

func (g *dedupeGuard) lookup(key string) (*daraja.PushResponse, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[key]
	if !ok {
		return nil, false
	}
	if g.now().Sub(entry.storedAt) > g.window {
		delete(g.entries, key)
		return nil, false
	}
	return entry.resp, true
}

func (g *dedupeGuard) store(key string, resp *daraja.PushResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.window)
	for k, entry := range g.entries {
		if entry.storedAt.Before(cutoff) {
			delete(g.entries, k)
		}
	}

	g.entries[key] = dedupeEntry{resp: resp, storedAt: g.now()}
}
