package hub

// FullnessView is one stereotype's (active, max) pair, keyed by the
// human-readable browser/platform names for JSON encoding.
type FullnessView struct {
	BrowserName  string `json:"browser_name"`
	PlatformName string `json:"platform_name"`
	Active       int    `json:"active"`
	Max          int    `json:"max"`
}

// View is the admin-visible shape of a Hub: {meta, state} per spec.md §6's
// list_hubs() contract. It exists so the internal Hub type, with its
// mutex and circuit breaker, never leaks into JSON encoding directly.
type View struct {
	Meta  Meta      `json:"meta"`
	State ViewState `json:"state"`
}

// ViewState is the live, mutable half of a hub view.
type ViewState struct {
	Readiness           string         `json:"readiness"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	Fullness            []FullnessView `json:"fullness"`
	Stereotypes         []Stereotype   `json:"stereotypes"`
	ReportedReady       bool           `json:"reported_ready"`
}

// Stereotype is the JSON-friendly form of a StereotypeKey.
type Stereotype struct {
	BrowserName  string `json:"browser_name"`
	PlatformName string `json:"platform_name"`
}

// ViewOf builds the admin-visible View for a hub.
func ViewOf(h *Hub) View {
	h.mu.RLock()
	fullness := make([]FullnessView, 0, len(h.fullness))
	for k, f := range h.fullness {
		fullness = append(fullness, FullnessView{
			BrowserName:  k.BrowserName,
			PlatformName: k.PlatformName,
			Active:       f.Active,
			Max:          f.Max,
		})
	}
	stereotypes := make([]Stereotype, 0, len(h.stereotypes))
	for k := range h.stereotypes {
		stereotypes = append(stereotypes, Stereotype{BrowserName: k.BrowserName, PlatformName: k.PlatformName})
	}
	reportedReady := h.lastReportedReady
	consecutiveFailures := h.consecutiveFailures
	h.mu.RUnlock()

	return View{
		Meta: h.Meta,
		State: ViewState{
			Readiness:           h.Readiness().String(),
			ConsecutiveFailures: consecutiveFailures,
			Fullness:            fullness,
			Stereotypes:         stereotypes,
			ReportedReady:       reportedReady,
		},
	}
}
