package forwarder

import (
	"encoding/json"
	"errors"

	"github.com/wudi/hubrouter/internal/hub"
)

// capability mirrors the two fields spec.md §4.4 matches on; any other
// WebDriver capability field is irrelevant to routing and is left alone in
// the buffered request body forwarded downstream unchanged.
type capability struct {
	BrowserName  *string `json:"browserName,omitempty"`
	PlatformName *string `json:"platformName,omitempty"`
}

func (c capability) merge(fallback capability) capability {
	if c.BrowserName == nil {
		c.BrowserName = fallback.BrowserName
	}
	if c.PlatformName == nil {
		c.PlatformName = fallback.PlatformName
	}
	return c
}

func (c capability) toMatcher() hub.Matcher {
	m := hub.Matcher{}
	if c.BrowserName != nil {
		m.BrowserName = *c.BrowserName
	}
	if c.PlatformName != nil {
		m.PlatformName = *c.PlatformName
	}
	return m
}

// newSessionRequestBody is the subset of a WebDriver new-session request
// this router needs to parse (spec.md §4.5 step 3).
type newSessionRequestBody struct {
	Capabilities struct {
		AlwaysMatch capability   `json:"alwaysMatch"`
		FirstMatch  []capability `json:"firstMatch"`
	} `json:"capabilities"`
}

// ParseNewSessionRequest decodes body as a WebDriver new-session request.
func ParseNewSessionRequest(body []byte) (newSessionRequestBody, error) {
	var req newSessionRequestBody
	if err := json.Unmarshal(body, &req); err != nil {
		return newSessionRequestBody{}, err
	}
	return req, nil
}

// PossibleMatchers synthesizes the ordered list of effective matchers from
// a parsed new-session request (spec.md §4.5 step 3 / SPEC_FULL.md §5
// 4.5a): each firstMatch entry fills any field it leaves absent from
// alwaysMatch. An empty firstMatch list is treated as a single-element
// list containing alwaysMatch alone (the Open Question's resolution).
func PossibleMatchers(req newSessionRequestBody) []hub.Matcher {
	firstMatches := req.Capabilities.FirstMatch
	if len(firstMatches) == 0 {
		firstMatches = []capability{{}}
	}

	out := make([]hub.Matcher, 0, len(firstMatches))
	for _, fm := range firstMatches {
		out = append(out, fm.merge(req.Capabilities.AlwaysMatch).toMatcher())
	}
	return out
}

// newSessionResponseBody is the subset of a WebDriver new-session response
// this router needs: the backend-assigned session id (spec.md §4.5 step 4).
type newSessionResponseBody struct {
	Value struct {
		SessionID string `json:"sessionId"`
	} `json:"value"`
}

// ParseNewSessionResponse extracts the session id from a hub's new-session
// response body.
func ParseNewSessionResponse(body []byte) (string, error) {
	var resp newSessionResponseBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.Value.SessionID == "" {
		return "", errEmptySessionID
	}
	return resp.Value.SessionID, nil
}

var errEmptySessionID = errors.New("new-session response carried no sessionId")
