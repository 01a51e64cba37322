// Package affinity implements the session-affinity map (spec.md §3/§4.6):
// a session-id → RoutingDecision table, populated on new-session success,
// consulted on every later request to the same session, and cleared on
// explicit delete or reaper timeout.
//
// Grounded on original_source/hub_router_warp/src/state.rs's doc comment:
// the table is "configured by the system at runtime dynamically" and is
// never part of the persisted document (see internal/state).
package affinity

import (
	"sync"
	"time"

	"github.com/wudi/hubrouter/internal/router"
)

// Map is the concurrent session-id → RoutingDecision table.
type Map struct {
	mu      sync.RWMutex
	entries map[string]router.RoutingDecision
}

// New returns an empty affinity Map.
func New() *Map {
	return &Map{entries: make(map[string]router.RoutingDecision)}
}

// Get returns the stored decision for sessionID, if any.
func (m *Map) Get(sessionID string) (router.RoutingDecision, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.entries[sessionID]
	return d, ok
}

// Insert records a routing decision for sessionID, overwriting any
// existing entry.
func (m *Map) Insert(sessionID string, d router.RoutingDecision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = d
}

// Delete removes sessionID's entry, if present. Removal is best-effort:
// deleting an absent key is not an error (spec.md §4.6).
func (m *Map) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
}

// Len returns the current number of affinity entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// EvictOlderThan removes every entry whose decision age is >= maxAge and
// returns the number evicted (spec.md §4.6).
func (m *Map) EvictOlderThan(maxAge time.Duration) int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for sessionID, d := range m.entries {
		if now.Sub(d.DecisionTime) >= maxAge {
			delete(m.entries, sessionID)
			evicted++
		}
	}
	return evicted
}

// Entry pairs a session id with its routing decision, for listing.
type Entry struct {
	SessionID string
	HubURL    string
}

// Snapshot returns the admin-visible (session_id, hub_url) list (spec.md
// §6 list_sessions()).
func (m *Map) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for sessionID, d := range m.entries {
		out = append(out, Entry{SessionID: sessionID, HubURL: d.HubURL})
	}
	return out
}
