package affinity

import (
	"testing"
	"time"

	"github.com/wudi/hubrouter/internal/router"
)

func TestInsertGetDelete(t *testing.T) {
	m := New()
	d := router.RoutingDecision{HubUUID: "u1", HubURL: "http://h1", DecisionTime: time.Now()}
	m.Insert("s1", d)

	got, ok := m.Get("s1")
	if !ok || got != d {
		t.Fatalf("Get(s1) = %v, %v; want %v, true", got, ok, d)
	}

	m.Delete("s1")
	if _, ok := m.Get("s1"); ok {
		t.Fatal("expected Get(s1) to fail after Delete")
	}
}

func TestDeleteAbsentKeyIsNotAnError(t *testing.T) {
	m := New()
	m.Delete("nonexistent") // must not panic
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}

func TestEvictOlderThan(t *testing.T) {
	m := New()
	m.Insert("stale", router.RoutingDecision{HubUUID: "u1", HubURL: "http://h1", DecisionTime: time.Now().Add(-3 * time.Second)})
	m.Insert("fresh", router.RoutingDecision{HubUUID: "u2", HubURL: "http://h2", DecisionTime: time.Now()})

	evicted := m.EvictOlderThan(2 * time.Second)
	if evicted != 1 {
		t.Fatalf("EvictOlderThan() evicted = %d, want 1", evicted)
	}
	if _, ok := m.Get("stale"); ok {
		t.Fatal("expected stale entry to be evicted")
	}
	if _, ok := m.Get("fresh"); !ok {
		t.Fatal("expected fresh entry to survive")
	}
}

func TestSnapshot(t *testing.T) {
	m := New()
	m.Insert("s1", router.RoutingDecision{HubUUID: "u1", HubURL: "http://h1", DecisionTime: time.Now()})

	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].SessionID != "s1" || snap[0].HubURL != "http://h1" {
		t.Fatalf("Snapshot() = %v, want one entry for s1 -> http://h1", snap)
	}
}
