// Package forwarder implements the session-affinity forwarder (spec.md
// §4.5): the proxy-facing http.Handler that classifies each inbound
// request, routes it (consulting or populating session affinity as
// appropriate), rewrites the outbound URL to the chosen hub, and streams
// the backend's response back unchanged.
//
// Grounded on original_source/hub_router_warp/src/handler.rs's handle()
// pipeline and on the teacher's (now-removed) internal/proxy/proxy.go
// hot-path request/response copying.
package forwarder

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/hubrouter/internal/affinity"
	hrerrors "github.com/wudi/hubrouter/internal/errors"
	"github.com/wudi/hubrouter/internal/metrics"
	"github.com/wudi/hubrouter/internal/router"
	"github.com/wudi/hubrouter/internal/tracing"
)

// hopByHopHeaders are stripped from both the outbound request and the
// inbound response, per the usual reverse-proxy convention.
var hopByHopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive",
	"Transfer-Encoding", "Te", "Trailer", "Upgrade",
}

// Forwarder is the http.Handler mounted at the proxy bind address.
type Forwarder struct {
	router   *router.Router
	affinity *affinity.Map
	client   *http.Client
	tracer   *tracing.Tracer
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New builds a Forwarder.
func New(r *router.Router, aff *affinity.Map, tracer *tracing.Tracer, mc *metrics.Collector, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		router:   r,
		affinity: aff,
		client:   &http.Client{},
		tracer:   tracer,
		metrics:  mc,
		logger:   logger,
	}
}

// ServeHTTP implements spec.md §4.5's full request lifecycle.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	class := Classify(r)
	sessionID, _ := ExtractSessionID(r.URL.Path)

	switch class {
	case ClassNewSession:
		f.handleNewSession(w, r)
	case ClassDeleteSession:
		f.handleDeleteSession(w, r, sessionID)
	default:
		f.handleOther(w, r, sessionID, class)
	}
}

func (f *Forwarder) handleNewSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := f.tracer.StartProxySpan(r.Context(), ClassNewSession.String(), "", "")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		f.writeError(w, hrerrors.Wrap(hrerrors.ErrBackendBodyError, err))
		return
	}

	parsed, err := ParseNewSessionRequest(body)
	if err != nil {
		f.writeError(w, hrerrors.Wrap(hrerrors.ErrBackendBodyError, err).WithDetails("malformed new-session request body"))
		return
	}
	matchers := PossibleMatchers(parsed)

	decision, err := f.router.Route("", nil, matchers)
	if err != nil {
		f.recordOutcome(err)
		f.writeRoutingError(w, err)
		return
	}
	f.recordOutcome(nil)

	resp, respBody, err := f.forward(ctx, r, decision.HubURL, bytes.NewReader(body))
	if err != nil {
		f.writeError(w, err)
		return
	}

	sessionID, parseErr := ParseNewSessionResponse(respBody)
	if parseErr != nil {
		f.logger.Warn("new-session response carried no usable sessionId",
			zap.String("hub_uuid", decision.HubUUID), zap.Error(parseErr))
		f.writeError(w, hrerrors.Wrap(hrerrors.ErrSessionCreationError, parseErr).WithDetails(string(respBody)))
		return
	}

	f.affinity.Insert(sessionID, router.RoutingDecision{
		HubUUID:      decision.HubUUID,
		HubURL:       decision.HubURL,
		DecisionTime: time.Now(),
	})
	if f.metrics != nil {
		f.metrics.SetAffinityMapSize(f.affinity.Len())
	}

	f.writeUpstream(w, resp, respBody)
}

func (f *Forwarder) handleDeleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx, span := f.tracer.StartProxySpan(r.Context(), ClassDeleteSession.String(), "", sessionID)
	defer span.End()

	decision, err := f.router.Route(sessionID, f.affinity, nil)
	if err != nil {
		f.recordOutcome(err)
		f.writeRoutingError(w, err)
		return
	}
	f.recordOutcome(nil)

	resp, respBody, err := f.forward(ctx, r, decision.HubURL, r.Body)

	// The session id is released regardless of the backend's response
	// status, or of a transport error talking to it (spec.md §4.5 step 4).
	f.affinity.Delete(sessionID)
	if f.metrics != nil {
		f.metrics.SetAffinityMapSize(f.affinity.Len())
	}

	if err != nil {
		f.writeError(w, err)
		return
	}
	f.writeUpstream(w, resp, respBody)
}

func (f *Forwarder) handleOther(w http.ResponseWriter, r *http.Request, sessionID string, class RouteClass) {
	ctx, span := f.tracer.StartProxySpan(r.Context(), class.String(), "", sessionID)
	defer span.End()

	decision, err := f.router.Route(sessionID, f.affinity, nil)
	if err != nil {
		f.recordOutcome(err)
		f.writeRoutingError(w, err)
		return
	}
	f.recordOutcome(nil)

	resp, respBody, err := f.forward(ctx, r, decision.HubURL, r.Body)
	if err != nil {
		f.writeError(w, err)
		return
	}
	f.writeUpstream(w, resp, respBody)
}

// forward rewrites r's URL to target base, preserving path and query and
// dropping userinfo/fragment (spec.md §4.5 step 4's URL rewrite), issues
// the request with body as its payload, and returns the raw response plus
// its fully-read body.
func (f *Forwarder) forward(ctx context.Context, r *http.Request, base string, body io.Reader) (*http.Response, []byte, error) {
	target, err := url.Parse(base)
	if err != nil {
		return nil, nil, hrerrors.Wrap(hrerrors.ErrMalformedRequestPath, err)
	}
	target.Path = r.URL.Path
	target.RawQuery = r.URL.RawQuery
	target.User = nil
	target.Fragment = ""

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, nil, hrerrors.Wrap(hrerrors.ErrMalformedRequestPath, err)
	}
	for k, vs := range r.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vs {
			outReq.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(outReq)
	if err != nil {
		return nil, nil, hrerrors.Wrap(hrerrors.ErrBackendTransportError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, hrerrors.Wrap(hrerrors.ErrBackendBodyError, err)
	}
	return resp, respBody, nil
}

func isHopByHop(header string) bool {
	for _, h := range hopByHopHeaders {
		if http.CanonicalHeaderKey(header) == http.CanonicalHeaderKey(h) {
			return true
		}
	}
	return false
}

// writeUpstream mirrors resp's status and headers to w, followed by body.
func (f *Forwarder) writeUpstream(w http.ResponseWriter, resp *http.Response, body []byte) {
	for k, vs := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

// writeError writes err as the response: a *HubRouterError writes its own
// code/kind/message, anything else falls back to a generic 500.
func (f *Forwarder) writeError(w http.ResponseWriter, err error) {
	if he, ok := hrerrors.IsHubRouterError(err); ok {
		he.WriteJSON(w)
		return
	}
	hrerrors.ErrInternalServer.WriteJSON(w)
}

// writeRoutingError maps a router.Route error (always a *HubRouterError
// sentinel per spec.md §7) to an HTTP response.
func (f *Forwarder) writeRoutingError(w http.ResponseWriter, err error) {
	f.writeError(w, err)
}

// recordOutcome records a routing decision's outcome metric.
func (f *Forwarder) recordOutcome(err error) {
	if f.metrics == nil {
		return
	}
	if err == nil {
		f.metrics.RecordRoutingDecision("ok")
		return
	}
	if he, ok := hrerrors.IsHubRouterError(err); ok && he.Kind != "" {
		f.metrics.RecordRoutingDecision(he.Kind)
		return
	}
	f.metrics.RecordRoutingDecision("error")
}
