// Package hub models a single registered Selenium-Grid-compatible backend:
// its readiness state machine, per-stereotype fullness, and the set of
// browser/platform stereotypes observed on its nodes.
package hub

import (
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Readiness is a hub's coarse availability state.
type Readiness int

const (
	Unhealthy Readiness = iota
	Ready
)

func (r Readiness) String() string {
	if r == Ready {
		return "ready"
	}
	return "unhealthy"
}

// consecutiveFailureThreshold is the N in "N-strikes demotion" (spec.md §4.3).
const consecutiveFailureThreshold = 3

// StereotypeKey is a case-insensitive (browserName, platformName) pair,
// normalized to lowercase so it can serve directly as a map key.
type StereotypeKey struct {
	BrowserName  string
	PlatformName string
}

func newStereotypeKey(browserName, platformName string) StereotypeKey {
	return StereotypeKey{
		BrowserName:  strings.ToLower(browserName),
		PlatformName: strings.ToLower(platformName),
	}
}

// Fullness is the (active, max) slot count for one stereotype key.
type Fullness struct {
	Active int
	Max    int
}

// Meta is the persisted, admin-supplied identity of a hub: everything
// that survives a save/load round trip.
type Meta struct {
	UUID string
	Name string
	URL  string
}

// Hub is a backend the router may send traffic to. All mutable fields are
// guarded by mu; Meta is immutable after construction.
type Hub struct {
	Meta

	mu                  sync.RWMutex
	ready               bool // set by SucceedHealthcheck, cleared when consecutiveFailures reaches the threshold
	consecutiveFailures int
	fullness            map[StereotypeKey]Fullness
	stereotypes         map[StereotypeKey]struct{}
	lastReportedReady   bool // raw value.ready from the last successful poll, observational only

	breaker *gobreaker.CircuitBreaker[struct{}]
}

// New constructs a Hub in the initial Unhealthy state with empty
// fullness/stereotypes, per spec.md §3 and the registry's deserialization
// invariant (transient fields always reset).
func New(meta Meta) *Hub {
	h := &Hub{
		Meta:        meta,
		fullness:    make(map[StereotypeKey]Fullness),
		stereotypes: make(map[StereotypeKey]struct{}),
	}
	h.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        meta.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     time.Nanosecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailureThreshold
		},
	})
	return h
}

// Readiness returns the hub's current readiness. This reads the hub's own
// ready flag rather than the circuit breaker's own State(): gobreaker's
// Open state self-expires into HalfOpen once its Timeout elapses, even
// with no intervening SucceedHealthcheck call, so State() alone would
// report HalfOpen (which maps to Ready) almost immediately after a trip —
// defeating the N-strikes demotion in spec.md §4.3. The flag is only set
// by an actual SucceedHealthcheck and is cleared when the third
// consecutive failure is recorded, so a new hub stays Unhealthy until its
// first passing probe and Unhealthy sticks until a real probe passes. The
// breaker itself is still driven by every Succeed/FailHealthcheck call,
// for its trip/recovery bookkeeping.
func (h *Hub) Readiness() Readiness {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ready {
		return Ready
	}
	return Unhealthy
}

// ConsecutiveFailures returns the saturating failure counter.
func (h *Hub) ConsecutiveFailures() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consecutiveFailures
}

// SucceedHealthcheck resets consecutive_failures to 0 and marks the hub
// Ready (spec.md §4.3 "succeed_healthcheck").
func (h *Hub) SucceedHealthcheck() {
	h.breaker.Execute(func() (struct{}, error) { return struct{}{}, nil })
	h.mu.Lock()
	h.consecutiveFailures = 0
	h.ready = true
	h.mu.Unlock()
}

// FailHealthcheck saturating-increments consecutive_failures and demotes
// to Unhealthy once it reaches the threshold (spec.md §4.3 "fail_healthcheck").
func (h *Hub) FailHealthcheck() {
	h.breaker.Execute(func() (struct{}, error) { return struct{}{}, errHealthcheckFailed })
	h.mu.Lock()
	if h.consecutiveFailures < 255 {
		h.consecutiveFailures++
	}
	if h.consecutiveFailures >= consecutiveFailureThreshold {
		h.ready = false
	}
	h.mu.Unlock()
}

var errHealthcheckFailed = errHealthcheck{}

type errHealthcheck struct{}

func (errHealthcheck) Error() string { return "healthcheck failed" }

// ReplaceFullnessAndStereotypes atomically replaces the fullness map and
// unions the observed stereotypes into the running set, per spec.md §4.2's
// "fullness map is replaced atomically per poll" invariant. lastReady is
// the raw top-level value.ready observed on this poll, kept for
// observability only (see SPEC_FULL.md §5 4.2a).
func (h *Hub) ReplaceFullnessAndStereotypes(fullness map[StereotypeKey]Fullness, observed []StereotypeKey, lastReady bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fullness = fullness
	h.lastReportedReady = lastReady
	for _, k := range observed {
		h.stereotypes[k] = struct{}{}
	}
}

// Stereotypes returns a snapshot copy of the stereotype set.
func (h *Hub) Stereotypes() []StereotypeKey {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]StereotypeKey, 0, len(h.stereotypes))
	for k := range h.stereotypes {
		out = append(out, k)
	}
	return out
}

// LastReportedReady returns the raw value.ready from the last successful
// poll, for observability only — it never gates readiness (SPEC_FULL.md
// §5 4.2a).
func (h *Hub) LastReportedReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReportedReady
}

// FullnessFor sums (active, max) across all fullness entries whose
// stereotype key satisfies matcher. A nil matcher sums every entry
// (spec.md §4.4 step 4, fullness_for(⊥)).
func (h *Hub) FullnessFor(matcher *Matcher) (active, max int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, f := range h.fullness {
		if matcher == nil || matcher.Satisfies(k) {
			active += f.Active
			max += f.Max
		}
	}
	return active, max
}

// SatisfiesAny reports whether any of the hub's observed stereotypes
// satisfies matcher.
func (h *Hub) SatisfiesAny(matcher Matcher) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k := range h.stereotypes {
		if matcher.Satisfies(k) {
			return true
		}
	}
	return false
}

// Matcher is a capability matcher: browserName/platformName are optional
// (empty string means "absent" / wildcard), per spec.md §4.4's capability
// matching semantics.
type Matcher struct {
	BrowserName  string
	PlatformName string
}

// Satisfies reports whether matcher m is satisfied by stereotype key k:
// each non-empty field of m must equal the corresponding field of k,
// ASCII-case-insensitively. k is assumed already normalized to lowercase
// (see newStereotypeKey); m is normalized here.
func (m Matcher) Satisfies(k StereotypeKey) bool {
	if m.BrowserName != "" && strings.ToLower(m.BrowserName) != k.BrowserName {
		return false
	}
	if m.PlatformName != "" && strings.ToLower(m.PlatformName) != k.PlatformName {
		return false
	}
	return true
}
