package hub

import "testing"

func TestNewHubStartsUnhealthy(t *testing.T) {
	h := New(Meta{UUID: "u1", Name: "h1", URL: "http://h1:4444"})
	if h.Readiness() != Unhealthy {
		t.Fatalf("Readiness() = %v, want Unhealthy", h.Readiness())
	}
	if h.ConsecutiveFailures() != 0 {
		t.Fatalf("ConsecutiveFailures() = %d, want 0", h.ConsecutiveFailures())
	}
}

func TestSucceedHealthcheckMakesReady(t *testing.T) {
	h := New(Meta{UUID: "u1", Name: "h1", URL: "http://h1:4444"})
	h.SucceedHealthcheck()
	if h.Readiness() != Ready {
		t.Fatalf("Readiness() = %v, want Ready", h.Readiness())
	}
	if h.ConsecutiveFailures() != 0 {
		t.Fatalf("ConsecutiveFailures() = %d, want 0", h.ConsecutiveFailures())
	}
}

func TestThreeConsecutiveFailuresDemote(t *testing.T) {
	h := New(Meta{UUID: "u1", Name: "h1", URL: "http://h1:4444"})
	h.SucceedHealthcheck()

	h.FailHealthcheck()
	if h.Readiness() != Ready {
		t.Fatalf("after 1 failure: Readiness() = %v, want Ready", h.Readiness())
	}
	h.FailHealthcheck()
	if h.Readiness() != Ready {
		t.Fatalf("after 2 failures: Readiness() = %v, want Ready", h.Readiness())
	}
	h.FailHealthcheck()
	if h.Readiness() != Unhealthy {
		t.Fatalf("after 3 failures: Readiness() = %v, want Unhealthy", h.Readiness())
	}
	if h.ConsecutiveFailures() != 3 {
		t.Fatalf("ConsecutiveFailures() = %d, want 3", h.ConsecutiveFailures())
	}
}

func TestSucceedAfterDemotionRecovers(t *testing.T) {
	h := New(Meta{UUID: "u1", Name: "h1", URL: "http://h1:4444"})
	h.SucceedHealthcheck()
	h.FailHealthcheck()
	h.FailHealthcheck()
	h.FailHealthcheck()
	if h.Readiness() != Unhealthy {
		t.Fatalf("expected Unhealthy after 3 failures")
	}

	h.SucceedHealthcheck()
	if h.Readiness() != Ready {
		t.Fatalf("Readiness() = %v, want Ready after recovery", h.Readiness())
	}
	if h.ConsecutiveFailures() != 0 {
		t.Fatalf("ConsecutiveFailures() = %d, want 0 after recovery", h.ConsecutiveFailures())
	}
}

func TestReplaceFullnessAndStereotypesIsAtomic(t *testing.T) {
	h := New(Meta{UUID: "u1", Name: "h1", URL: "http://h1:4444"})
	key := StereotypeKey{BrowserName: "chrome", PlatformName: "linux"}
	h.ReplaceFullnessAndStereotypes(map[StereotypeKey]Fullness{key: {Active: 0, Max: 2}}, []StereotypeKey{key}, true)

	active, max := h.FullnessFor(nil)
	if active != 0 || max != 2 {
		t.Fatalf("FullnessFor(nil) = (%d,%d), want (0,2)", active, max)
	}

	// A second poll with an empty result must replace, not merge.
	h.ReplaceFullnessAndStereotypes(map[StereotypeKey]Fullness{}, nil, false)
	active, max = h.FullnessFor(nil)
	if active != 0 || max != 0 {
		t.Fatalf("FullnessFor(nil) after empty poll = (%d,%d), want (0,0)", active, max)
	}

	// Stereotypes accumulate (union), unlike fullness.
	stereotypes := h.Stereotypes()
	if len(stereotypes) != 1 || stereotypes[0] != key {
		t.Fatalf("Stereotypes() = %v, want union containing %v", stereotypes, key)
	}
}

func TestMatcherSatisfiesCaseInsensitive(t *testing.T) {
	k := StereotypeKey{BrowserName: "chrome", PlatformName: "linux"}

	tests := []struct {
		name string
		m    Matcher
		want bool
	}{
		{"exact", Matcher{BrowserName: "chrome", PlatformName: "linux"}, true},
		{"mixed case", Matcher{BrowserName: "Chrome", PlatformName: "LINUX"}, true},
		{"browser only", Matcher{BrowserName: "chrome"}, true},
		{"platform only", Matcher{PlatformName: "linux"}, true},
		{"wildcard", Matcher{}, true},
		{"wrong browser", Matcher{BrowserName: "firefox"}, false},
		{"wrong platform", Matcher{PlatformName: "windows"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Satisfies(k); got != tt.want {
				t.Errorf("Satisfies(%+v) = %v, want %v", k, got, tt.want)
			}
		})
	}
}

func TestFullnessForMatcher(t *testing.T) {
	h := New(Meta{UUID: "u1", Name: "h1", URL: "http://h1:4444"})
	chromeLinux := StereotypeKey{BrowserName: "chrome", PlatformName: "linux"}
	firefoxLinux := StereotypeKey{BrowserName: "firefox", PlatformName: "linux"}
	h.ReplaceFullnessAndStereotypes(map[StereotypeKey]Fullness{
		chromeLinux:  {Active: 1, Max: 2},
		firefoxLinux: {Active: 0, Max: 1},
	}, []StereotypeKey{chromeLinux, firefoxLinux}, true)

	active, max := h.FullnessFor(&Matcher{BrowserName: "chrome"})
	if active != 1 || max != 2 {
		t.Fatalf("FullnessFor(chrome) = (%d,%d), want (1,2)", active, max)
	}

	active, max = h.FullnessFor(nil)
	if active != 1 || max != 3 {
		t.Fatalf("FullnessFor(nil) = (%d,%d), want (1,3)", active, max)
	}
}
