// Package admin implements the admin REST surface (spec.md §6): hub
// registration/deregistration/listing, session listing, config read and
// update, persistence, plus /healthz, /metrics, and /openapi.json.
//
// Grounded on the teacher's internal/router/router.go use of
// julienschmidt/httprouter for path-parameter dispatch, simplified here
// to a flat set of fixed admin routes (this surface has no dynamic route
// configuration of its own, unlike the teacher's gateway).
package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	hrerrors "github.com/wudi/hubrouter/internal/errors"
	"github.com/wudi/hubrouter/internal/hub"
	"github.com/wudi/hubrouter/internal/metrics"
	"github.com/wudi/hubrouter/internal/openapi"
	"github.com/wudi/hubrouter/internal/state"
)

// Server builds the admin http.Handler over a State.
type Server struct {
	state   *state.State
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New builds the admin Server.
func New(s *state.State, mc *metrics.Collector, logger *zap.Logger) *Server {
	return &Server{state: s, metrics: mc, logger: logger}
}

// Handler assembles the httprouter.Router mounted at the admin bind address.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.HandleMethodNotAllowed = true

	r.GET("/admin/hubs", s.listHubs)
	r.POST("/admin/hubs", s.registerHub)
	r.DELETE("/admin/hubs/:uuid", s.deregisterHub)

	r.GET("/admin/sessions", s.listSessions)

	r.GET("/admin/config", s.getConfig)
	r.PATCH("/admin/config", s.setConfig)

	r.POST("/admin/persist", s.persist)

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", s.metricsHandler)
	r.GET("/openapi.json", s.openapiDoc)

	return r
}

func (s *Server) listHubs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.state.Registry().Snapshot())
}

type registerHubRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) registerHub(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	defer r.Body.Close()
	var req registerHubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		hrerrors.ErrBadRequest.WithDetails("malformed request body").WriteJSON(w)
		return
	}
	if req.URL == "" {
		hrerrors.ErrBadRequest.WithDetails("url is required").WriteJSON(w)
		return
	}

	reg := s.state.Registry()
	if reg.HasURL(req.URL) {
		hrerrors.ErrBadRequest.WithDetails("a hub with this url is already registered").WriteJSON(w)
		return
	}

	meta := hub.Meta{UUID: uuid.NewString(), Name: req.Name, URL: req.URL}
	reg.Insert(hub.New(meta))

	s.logger.Info("hub registered", zap.String("hub_uuid", meta.UUID), zap.String("url", meta.URL))
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) deregisterHub(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("uuid")
	reg := s.state.Registry()
	if _, ok := reg.Get(id); !ok {
		hrerrors.ErrNotFound.WithDetails("no hub with this uuid").WriteJSON(w)
		return
	}
	reg.Remove(id)
	if s.metrics != nil {
		s.metrics.DeleteHub(id)
	}
	s.logger.Info("hub deregistered", zap.String("hub_uuid", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.state.Affinity().Snapshot())
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.state.Config())
}

type keyedConfigUpdate struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// setConfig implements spec.md §6's two set_config shapes: a full config
// document (decodes directly as config.Config), or a {"key","value"}
// keyed update. The request is buffered so both decode attempts can be
// tried against the same bytes.
func (s *Server) setConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		hrerrors.ErrBadRequest.WithDetails("could not read request body").WriteJSON(w)
		return
	}

	var keyed keyedConfigUpdate
	if err := json.Unmarshal(body, &keyed); err == nil && keyed.Key != "" {
		if err := s.state.SetConfigKeyed(keyed.Key, keyed.Value); err != nil {
			hrerrors.ErrBadRequest.WithDetails(err.Error()).WriteJSON(w)
			return
		}
		writeJSON(w, http.StatusOK, s.state.Config())
		return
	}

	var full struct {
		ReaperIntervalSecs      int    `json:"reaper_interval_secs"`
		ReaperMaxSessionSecs    int    `json:"reaper_max_session_secs"`
		HealthcheckIntervalSecs int    `json:"healthcheck_interval_secs"`
		HealthcheckTimeoutSecs  int    `json:"healthcheck_timeout_secs"`
		ProxyBindIP             string `json:"proxy_bind_ip"`
		ProxyBindPort           int    `json:"proxy_bind_port"`
		AdminBindIP             string `json:"admin_bind_ip"`
		AdminBindPort           int    `json:"admin_bind_port"`
	}
	if err := json.Unmarshal(body, &full); err != nil {
		hrerrors.ErrBadRequest.WithDetails("malformed config document").WriteJSON(w)
		return
	}

	cur := s.state.Config()
	cur.ReaperIntervalSecs = full.ReaperIntervalSecs
	cur.ReaperMaxSessionSecs = full.ReaperMaxSessionSecs
	cur.HealthcheckIntervalSecs = full.HealthcheckIntervalSecs
	cur.HealthcheckTimeoutSecs = full.HealthcheckTimeoutSecs
	cur.ProxyBindIP = full.ProxyBindIP
	cur.ProxyBindPort = full.ProxyBindPort
	cur.AdminBindIP = full.AdminBindIP
	cur.AdminBindPort = full.AdminBindPort
	s.state.SetConfig(cur)

	writeJSON(w, http.StatusOK, s.state.Config())
}

func (s *Server) persist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.state.Persist(); err != nil {
		s.logger.Error("persist failed", zap.Error(err))
		hrerrors.ErrInternalServer.WithDetails(err.Error()).WriteJSON(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) openapiDoc(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, openapi.Document())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

