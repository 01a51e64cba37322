package openapi

import "testing"

func TestDocumentCoreEndpointsPresent(t *testing.T) {
	doc := Document()

	if doc.Info == nil || doc.Info.Title == "" {
		t.Fatal("Document() has no Info.Title")
	}

	for _, path := range []string{
		"/session", "/session/{sessionId}",
		"/admin/hubs", "/admin/hubs/{uuid}", "/admin/sessions",
		"/admin/config", "/admin/persist", "/healthz", "/metrics",
	} {
		if item := doc.Paths.Value(path); item == nil {
			t.Errorf("Paths.Value(%q) = nil, want a path item", path)
		}
	}
}

func TestNewSessionOperationHasErrorResponses(t *testing.T) {
	doc := Document()
	op := doc.Paths.Value("/session").Post
	if op == nil {
		t.Fatal("POST /session has no operation")
	}
	if op.Responses.Value("500") == nil {
		t.Error("POST /session is missing a 500 response")
	}
}
