package forwarder

import (
	"net/http"
	"regexp"
	"strings"
)

// sessionIDPattern matches spec.md §4.5 step 1: `^/session/([^/]+)(/|$)`.
var sessionIDPattern = regexp.MustCompile(`^/session/([^/]+)(/|$)`)

// ExtractSessionID returns the session id embedded in path, if any
// (spec.md §4.5 step 1 / §8 boundary table).
func ExtractSessionID(path string) (string, bool) {
	m := sessionIDPattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RouteClass classifies an inbound request per spec.md §4.5 step 2.
type RouteClass int

const (
	ClassNewSession RouteClass = iota
	ClassDeleteSession
	ClassOther
)

func (c RouteClass) String() string {
	switch c {
	case ClassNewSession:
		return "new_session"
	case ClassDeleteSession:
		return "delete_session"
	default:
		return "other"
	}
}

// Classify implements spec.md §4.5 step 2.
func Classify(r *http.Request) RouteClass {
	if r.Method == http.MethodPost && r.URL.Path == "/session" {
		return ClassNewSession
	}
	if r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/session/") {
		return ClassDeleteSession
	}
	return ClassOther
}
