package hub

import "sync"

// Registry is a concurrent keyed store of Hubs, keyed by uuid. Per-key
// mutation is atomic with respect to other per-key operations; iteration
// produces a consistent snapshot of each visited entry (spec.md §4.1).
//
// The Poller never inserts or removes entries — only the admin surface
// does, via Insert/Remove (spec.md §3 invariant).
type Registry struct {
	mu   sync.RWMutex
	hubs map[string]*Hub
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hubs: make(map[string]*Hub)}
}

// Insert adds or replaces the hub at its uuid.
func (r *Registry) Insert(h *Hub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hubs[h.UUID] = h
}

// Remove deletes the hub with the given uuid, if present.
func (r *Registry) Remove(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hubs, uuid)
}

// Get returns the hub for uuid, if present.
func (r *Registry) Get(uuid string) (*Hub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hubs[uuid]
	return h, ok
}

// HasURL reports whether any registered hub has the given base URL,
// used by register() to reject duplicate-URL registrations (spec.md §6).
func (r *Registry) HasURL(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.hubs {
		if h.URL == url {
			return true
		}
	}
	return false
}

// Iter returns a snapshot slice of all currently registered hubs. The
// slice itself is a point-in-time copy of the registry's key set; each
// *Hub pointer is shared and still protected by its own internal lock.
func (r *Registry) Iter() []*Hub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Hub, 0, len(r.hubs))
	for _, h := range r.hubs {
		out = append(out, h)
	}
	return out
}

// AlterAll applies fn to every currently registered hub. fn is called
// with each hub outside the registry lock, so it may take longer-lived
// per-hub locks itself without risking a deadlock against Insert/Remove.
func (r *Registry) AlterAll(fn func(*Hub)) {
	for _, h := range r.Iter() {
		fn(h)
	}
}

// Len returns the number of registered hubs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hubs)
}

// Snapshot returns the admin-visible view of every registered hub
// (spec.md §6 list_hubs()).
func (r *Registry) Snapshot() []View {
	hubs := r.Iter()
	out := make([]View, 0, len(hubs))
	for _, h := range hubs {
		out = append(out, ViewOf(h))
	}
	return out
}

// Metas returns the persisted metadata of every registered hub, in the
// shape persist() serializes (spec.md §6 persistence format).
func (r *Registry) Metas() []Meta {
	hubs := r.Iter()
	out := make([]Meta, 0, len(hubs))
	for _, h := range hubs {
		out = append(out, h.Meta)
	}
	return out
}
