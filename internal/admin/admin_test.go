package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wudi/hubrouter/internal/affinity"
	"github.com/wudi/hubrouter/internal/config"
	"github.com/wudi/hubrouter/internal/hub"
	"github.com/wudi/hubrouter/internal/metrics"
	"github.com/wudi/hubrouter/internal/router"
	"github.com/wudi/hubrouter/internal/state"
)

func newTestServer(t *testing.T) (*Server, *state.State) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	s := state.New(path, config.Default(), hub.NewRegistry(), affinity.New())
	return New(s, metrics.NewCollector(), zap.NewNop()), s
}

func TestRegisterListAndDeregisterHub(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	body := strings.NewReader(`{"name":"hub-1","url":"http://hub1:4444"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/hubs", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var meta hub.Meta
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if meta.UUID == "" || meta.URL != "http://hub1:4444" {
		t.Fatalf("meta = %+v, want populated uuid and matching url", meta)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/hubs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var views []hub.View
	json.Unmarshal(rec.Body.Bytes(), &views)
	if len(views) != 1 || views[0].Meta.UUID != meta.UUID {
		t.Fatalf("views = %+v, want one entry matching %s", views, meta.UUID)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/hubs/"+meta.UUID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deregister status = %d", rec.Code)
	}
	if _, ok := st.Registry().Get(meta.UUID); ok {
		t.Fatal("hub still present in registry after deregister")
	}
}

func TestRegisterDuplicateURLRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	body := `{"name":"hub-1","url":"http://hub1:4444"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/hubs", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/hubs", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d, want 400", rec.Code)
	}
}

func TestDeregisterUnknownHub(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/hubs/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	srv, st := newTestServer(t)
	st.Affinity().Insert("sess-1", router.RoutingDecision{HubUUID: "u1", HubURL: "http://hub1:4444"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []affinity.Entry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].SessionID != "sess-1" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestGetAndSetConfigKeyed(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get config status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	patchBody := strings.NewReader(`{"key":"reaper_interval","value":45}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/config", patchBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch config status = %d, body=%s", rec.Code, rec.Body.String())
	}
	if got := st.Config().ReaperIntervalSecs; got != 45 {
		t.Fatalf("ReaperIntervalSecs = %d, want 45", got)
	}
}

func TestSetConfigUnknownKeyRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"key":"not_a_real_key","value":1}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/config", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPersistWritesFile(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/persist", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthzAndMetricsAndOpenAPI(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, path := range []string{"/healthz", "/metrics", "/openapi.json"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}
