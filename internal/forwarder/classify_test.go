package forwarder

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractSessionID(t *testing.T) {
	cases := []struct {
		path   string
		wantID string
		wantOK bool
	}{
		{"/session", "", false},
		{"/session/abc", "abc", true},
		{"/session/abc/", "abc", true},
		{"/session/abc/element", "abc", true},
		{"/status", "", false},
		{"/session/", "", false},
	}
	for _, c := range cases {
		id, ok := ExtractSessionID(c.path)
		if id != c.wantID || ok != c.wantOK {
			t.Errorf("ExtractSessionID(%q) = (%q, %v), want (%q, %v)", c.path, id, ok, c.wantID, c.wantOK)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   RouteClass
	}{
		{http.MethodPost, "/session", ClassNewSession},
		{http.MethodDelete, "/session/abc", ClassDeleteSession},
		{http.MethodGet, "/session/abc/element", ClassOther},
		{http.MethodGet, "/status", ClassOther},
		{http.MethodPost, "/session/abc/element", ClassOther},
	}
	for _, c := range cases {
		r := httptest.NewRequest(c.method, c.path, nil)
		if got := Classify(r); got != c.want {
			t.Errorf("Classify(%s %s) = %v, want %v", c.method, c.path, got, c.want)
		}
	}
}
