// Package state implements the State Container (spec.md §4.7): it owns
// the hub registry and a lock-protected Config, and provides the
// load/persist hooks the CLI and admin surface drive.
package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/wudi/hubrouter/internal/affinity"
	"github.com/wudi/hubrouter/internal/config"
	"github.com/wudi/hubrouter/internal/hub"
)

// document is the on-disk persistence shape (spec.md §6): hub metadata
// plus config primitives, never transient hub state or the affinity map
// (original_source/hub_router_warp/src/state.rs's doc comment,
// SPEC_FULL.md §10).
type document struct {
	Hubs   []hub.Meta    `json:"hubs"`
	Config config.Config `json:"config"`
}

// State owns the registry and config behind a reader-writer lock;
// background tasks re-read config at their own natural boundaries
// (spec.md §4.7 — no broadcast/notify semantics are required).
type State struct {
	mu       sync.RWMutex
	cfg      config.Config
	registry *hub.Registry
	affinity *affinity.Map
	path     string
}

// New constructs a State over an existing registry and affinity map,
// with cfg as the current config and path as the fixed persistence file.
func New(path string, cfg config.Config, registry *hub.Registry, aff *affinity.Map) *State {
	return &State{path: path, cfg: cfg, registry: registry, affinity: aff}
}

// Registry returns the owned hub registry.
func (s *State) Registry() *hub.Registry {
	return s.registry
}

// Affinity returns the owned affinity map.
func (s *State) Affinity() *affinity.Map {
	return s.affinity
}

// Config returns a copy of the current config.
func (s *State) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the entire config (spec.md §6 full set_config).
func (s *State) SetConfig(cfg config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// SetConfigKeyed applies a keyed config update (spec.md §6 keyed
// set_config).
func (s *State) SetConfigKeyed(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := config.ApplyKeyed(s.cfg, key, value)
	if err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// ReaperIntervalAndMax implements affinity.IntervalAndMaxAge, letting the
// reaper re-read its timing from the live config on every tick.
func (s *State) ReaperIntervalAndMax() (interval, maxAge time.Duration) {
	cfg := s.Config()
	return cfg.ReaperInterval(), cfg.ReaperMaxSession()
}

// HealthcheckIntervalAndTimeout implements health.IntervalAndTimeout,
// letting the poller re-read its timing from the live config on every
// tick.
func (s *State) HealthcheckIntervalAndTimeout() (interval, timeout time.Duration) {
	cfg := s.Config()
	return cfg.HealthcheckInterval(), cfg.HealthcheckTimeout()
}

// Persist serializes hub metadata and config primitives to the fixed
// path (spec.md §4.7/§6). Persistence errors are returned to the caller
// (the admin surface) and never invalidate the in-memory mutation
// (spec.md §7 policy).
func (s *State) Persist() error {
	doc := document{
		Hubs:   s.registry.Metas(),
		Config: s.Config(),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

// Load reads the persistence document at path, decoding hub metadata and
// config primitives. Transient hub state is never part of the document
// and is reconstructed fresh by the caller via hub.New for each Meta
// (spec.md §4.1's deserialization invariant). A missing file yields
// Default() config and no hubs, rather than an error, so a first run
// with no config.json starts cleanly.
func Load(path string) (config.Config, []hub.Meta, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config.Default(), nil, nil
	}
	if err != nil {
		return config.Config{}, nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Tolerate a malformed document the way spec.md §6 asks for missing
		// fields: fall back to defaults rather than refusing to start.
		return config.FromDocument(raw), nil, nil
	}
	cfg := config.FromDocument(raw)
	return cfg, doc.Hubs, nil
}
