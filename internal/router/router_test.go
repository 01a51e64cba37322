package router

import (
	"errors"
	"math/rand"
	"testing"

	hrerrors "github.com/wudi/hubrouter/internal/errors"
	"github.com/wudi/hubrouter/internal/hub"
)

func readyHub(uuid, url string) *hub.Hub {
	h := hub.New(hub.Meta{UUID: uuid, Name: uuid, URL: url})
	h.SucceedHealthcheck()
	return h
}

func TestRouteNoHubsRegistered(t *testing.T) {
	reg := hub.NewRegistry()
	r := New(reg, rand.NewSource(1))

	_, err := r.Route("", nil, nil)
	if !errors.Is(err, hrerrors.ErrNoHealthyNodes) {
		t.Fatalf("Route() err = %v, want ErrNoHealthyNodes", err)
	}
}

func TestRouteAllHubsUnready(t *testing.T) {
	reg := hub.NewRegistry()
	reg.Insert(hub.New(hub.Meta{UUID: "u1", Name: "h1", URL: "http://h1"}))
	r := New(reg, rand.NewSource(1))

	_, err := r.Route("", nil, nil)
	if !errors.Is(err, hrerrors.ErrNoHealthyNodes) {
		t.Fatalf("Route() err = %v, want ErrNoHealthyNodes", err)
	}
}

func TestRouteEmptyRequestedFallsBackToAllReady(t *testing.T) {
	reg := hub.NewRegistry()
	reg.Insert(readyHub("u1", "http://h1"))
	r := New(reg, rand.NewSource(1))

	d, err := r.Route("", nil, []hub.Matcher{})
	if err != nil {
		t.Fatalf("Route() err = %v, want nil", err)
	}
	if d.HubUUID != "u1" {
		t.Fatalf("HubUUID = %q, want u1", d.HubUUID)
	}
}

func TestRouteUnableToSatisfyCapabilities(t *testing.T) {
	reg := hub.NewRegistry()
	h := readyHub("u1", "http://h1")
	h.ReplaceFullnessAndStereotypes(
		map[hub.StereotypeKey]hub.Fullness{{BrowserName: "firefox", PlatformName: "linux"}: {Max: 1}},
		[]hub.StereotypeKey{{BrowserName: "firefox", PlatformName: "linux"}},
		true,
	)
	reg.Insert(h)
	r := New(reg, rand.NewSource(1))

	_, err := r.Route("", nil, []hub.Matcher{{BrowserName: "chrome"}})
	if !errors.Is(err, hrerrors.ErrUnableToSatisfyCapabilities) {
		t.Fatalf("Route() err = %v, want ErrUnableToSatisfyCapabilities", err)
	}
}

func TestRouteFirstMatchFallback(t *testing.T) {
	reg := hub.NewRegistry()

	a := readyHub("a", "http://a")
	a.ReplaceFullnessAndStereotypes(
		map[hub.StereotypeKey]hub.Fullness{{BrowserName: "firefox", PlatformName: "linux"}: {Max: 1}},
		[]hub.StereotypeKey{{BrowserName: "firefox", PlatformName: "linux"}},
		true,
	)
	b := readyHub("b", "http://b")
	b.ReplaceFullnessAndStereotypes(
		map[hub.StereotypeKey]hub.Fullness{{BrowserName: "chrome", PlatformName: "linux"}: {Max: 1}},
		[]hub.StereotypeKey{{BrowserName: "chrome", PlatformName: "linux"}},
		true,
	)
	reg.Insert(a)
	reg.Insert(b)

	r := New(reg, rand.NewSource(1))
	d, err := r.Route("", nil, []hub.Matcher{{BrowserName: "safari"}, {BrowserName: "chrome"}})
	if err != nil {
		t.Fatalf("Route() err = %v", err)
	}
	if d.HubUUID != "b" {
		t.Fatalf("HubUUID = %q, want b", d.HubUUID)
	}
}

func TestSelectWeightedSingleCandidateAlwaysWins(t *testing.T) {
	reg := hub.NewRegistry()
	reg.Insert(readyHub("only", "http://only"))
	r := New(reg, rand.NewSource(1))

	for i := 0; i < 20; i++ {
		d, err := r.Route("", nil, nil)
		if err != nil {
			t.Fatalf("Route() err = %v", err)
		}
		if d.HubUUID != "only" {
			t.Fatalf("HubUUID = %q, want only", d.HubUUID)
		}
	}
}

func TestSelectWeightedBias(t *testing.T) {
	reg := hub.NewRegistry()
	a := readyHub("a", "http://a")
	a.ReplaceFullnessAndStereotypes(map[hub.StereotypeKey]hub.Fullness{
		{}: {Active: 0, Max: 4},
	}, nil, true)
	b := readyHub("b", "http://b")
	b.ReplaceFullnessAndStereotypes(map[hub.StereotypeKey]hub.Fullness{
		{}: {Active: 3, Max: 4},
	}, nil, true)
	reg.Insert(a)
	reg.Insert(b)

	r := New(reg, rand.NewSource(42))

	counts := map[string]int{}
	const trials = 6000
	for i := 0; i < trials; i++ {
		d, err := r.Route("", nil, nil)
		if err != nil {
			t.Fatalf("Route() err = %v", err)
		}
		counts[d.HubUUID]++
	}

	// Weights: A = max(2*4-0,1) = 8, B = max(2*4-3,1) = 5. Expect ~8:5.
	total := float64(counts["a"] + counts["b"])
	ratio := float64(counts["a"]) / total
	want := 8.0 / 13.0
	if diff := ratio - want; diff < -0.05 || diff > 0.05 {
		t.Fatalf("A's share = %.3f, want close to %.3f (counts=%v)", ratio, want, counts)
	}
}

func TestRouteUsesAffinityShortcut(t *testing.T) {
	reg := hub.NewRegistry()
	r := New(reg, rand.NewSource(1))

	stored := RoutingDecision{HubUUID: "gone", HubURL: "http://gone"}
	lookup := fakeAffinity{"s1": stored}

	d, err := r.Route("s1", lookup, nil)
	if err != nil {
		t.Fatalf("Route() err = %v", err)
	}
	if d != stored {
		t.Fatalf("Route() = %+v, want stored decision %+v (affinity shortcut, even for a deregistered hub)", d, stored)
	}
}

type fakeAffinity map[string]RoutingDecision

func (f fakeAffinity) Get(sessionID string) (RoutingDecision, bool) {
	d, ok := f[sessionID]
	return d, ok
}
