// Package router implements the capability-aware weighted router
// (spec.md §4.4): given an optional prior session id and an optional
// ordered list of capability matchers, it produces a RoutingDecision.
//
// The weighted-walk selection here is grounded on the teacher's
// internal/loadbalancer/weighted.go WeightedBalancer.NextForRequest
// cumulative-weight walk, generalized from HTTP backend weights to hub
// fullness-derived weights, and on original_source's
// hub_router_warp/src/routing.rs make_routing_decision for the overall
// affinity-shortcut / readiness-filter / capability-filter pipeline.
package router

import (
	"math/rand"
	"time"

	hrerrors "github.com/wudi/hubrouter/internal/errors"
	"github.com/wudi/hubrouter/internal/hub"
)

// RoutingDecision is immutable once created (spec.md §3).
type RoutingDecision struct {
	HubUUID      string
	HubURL       string
	DecisionTime time.Time
}

// AffinityLookup is the subset of the affinity map the router needs: a
// read lookup. Satisfied by *affinity.Map.
type AffinityLookup interface {
	Get(sessionID string) (RoutingDecision, bool)
}

// Router chooses a hub for a request.
type Router struct {
	registry *hub.Registry
	rng      *rand.Rand
}

// New builds a Router over the given registry. src, if non-nil, seeds
// the weighted-selection RNG deterministically (used by tests); nil uses
// a time-seeded source.
func New(registry *hub.Registry, src rand.Source) *Router {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Router{registry: registry, rng: rand.New(src)}
}

// Route implements spec.md §4.4's algorithm. affinity may be nil when the
// caller already knows no session id applies (e.g. a brand new session
// request with no affinity to check).
func (r *Router) Route(sessionID string, affinity AffinityLookup, requested []hub.Matcher) (RoutingDecision, error) {
	if sessionID != "" && affinity != nil {
		if d, ok := affinity.Get(sessionID); ok {
			return d, nil
		}
	}

	ready := make([]*hub.Hub, 0)
	for _, h := range r.registry.Iter() {
		if h.Readiness() == hub.Ready {
			ready = append(ready, h)
		}
	}
	if len(ready) == 0 {
		return RoutingDecision{}, hrerrors.ErrNoHealthyNodes
	}

	candidates, matcher, err := r.filterByCapabilities(ready, requested)
	if err != nil {
		return RoutingDecision{}, err
	}

	chosen, err := r.selectWeighted(candidates, matcher)
	if err != nil {
		return RoutingDecision{}, err
	}

	return RoutingDecision{
		HubUUID:      chosen.UUID,
		HubURL:       chosen.URL,
		DecisionTime: time.Now(),
	}, nil
}

// filterByCapabilities implements spec.md §4.4 step 3: iterate requested
// matchers in order, taking the first whose candidate set is non-empty.
// An absent (nil) requested list candidates every ready hub with no
// matcher (⊥). An empty, non-nil requested list is also treated as "no
// matcher provided" (spec.md §8 boundary).
func (r *Router) filterByCapabilities(ready []*hub.Hub, requested []hub.Matcher) ([]*hub.Hub, *hub.Matcher, error) {
	if len(requested) == 0 {
		return ready, nil, nil
	}

	for i := range requested {
		m := requested[i]
		var candidates []*hub.Hub
		for _, h := range ready {
			if h.SatisfiesAny(m) {
				candidates = append(candidates, h)
			}
		}
		if len(candidates) > 0 {
			return candidates, &m, nil
		}
	}

	return nil, nil, hrerrors.ErrUnableToSatisfyCapabilities
}

// selectWeighted implements spec.md §4.4 steps 4-5: weight each candidate
// as max(2*max - active, 1), roll r uniformly in [0, W), and walk
// accumulating weight, returning the first hub whose running total is
// strictly greater than r (SPEC_FULL.md §5 4.4a's resolution of the Open
// Question — avoids the off-by-one a closed interval risks).
func (r *Router) selectWeighted(candidates []*hub.Hub, matcher *hub.Matcher) (*hub.Hub, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	weights := make([]int, len(candidates))
	total := 0
	for i, h := range candidates {
		active, max := h.FullnessFor(matcher)
		w := 2*max - active
		if w < 1 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	roll := r.rng.Float64() * float64(total)
	running := 0
	for i, w := range weights {
		running += w
		if float64(running) > roll {
			return candidates[i], nil
		}
	}

	return nil, hrerrors.ErrNoDecision
}
