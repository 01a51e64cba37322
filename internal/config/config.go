// Package config defines the hub router's runtime-mutable Config
// (spec.md §3/§6) and its JSON persistence, defaulting, and keyed-update
// logic.
//
// The four admin-mutable key names below mirror original_source/'s
// conf.rs, which exports one string constant per config key used by both
// its file loader and its admin update path (SPEC_FULL.md §10).
package config

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Admin-mutable config key names (spec.md §6 set_config keys).
const (
	KeyHealthcheckInterval = "healthcheck_interval"
	KeyHealthcheckTimeout  = "healthcheck_timeout"
	KeyReaperInterval      = "reaper_interval"
	KeyReaperMaxDuration   = "reaper_max_duration"
)

// Config holds every admin-mutable runtime primitive (spec.md §3).
// proxy_bind_* and admin_bind_* are bound once at startup; later edits
// take effect only on restart.
type Config struct {
	ReaperIntervalSecs      int    `json:"reaper_interval_secs"`
	ReaperMaxSessionSecs    int    `json:"reaper_max_session_secs"`
	HealthcheckIntervalSecs int    `json:"healthcheck_interval_secs"`
	HealthcheckTimeoutSecs  int    `json:"healthcheck_timeout_secs"`
	ProxyBindIP             string `json:"proxy_bind_ip"`
	ProxyBindPort           int    `json:"proxy_bind_port"`
	AdminBindIP             string `json:"admin_bind_ip"`
	AdminBindPort           int    `json:"admin_bind_port"`
}

// Default returns spec.md §6's documented defaults.
func Default() Config {
	return Config{
		ReaperIntervalSecs:      60,
		ReaperMaxSessionSecs:    30 * 60,
		HealthcheckIntervalSecs: 1,
		HealthcheckTimeoutSecs:  1,
		ProxyBindIP:             "0.0.0.0",
		ProxyBindPort:           6543,
		AdminBindIP:             "0.0.0.0",
		AdminBindPort:           8080,
	}
}

// ReaperInterval returns the reaper tick interval as a Duration.
func (c Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSecs) * time.Second
}

// ReaperMaxSession returns the maximum affinity entry age as a Duration.
func (c Config) ReaperMaxSession() time.Duration {
	return time.Duration(c.ReaperMaxSessionSecs) * time.Second
}

// HealthcheckInterval returns the poller tick interval as a Duration.
func (c Config) HealthcheckInterval() time.Duration {
	return time.Duration(c.HealthcheckIntervalSecs) * time.Second
}

// HealthcheckTimeout returns the per-hub healthcheck request timeout.
func (c Config) HealthcheckTimeout() time.Duration {
	return time.Duration(c.HealthcheckTimeoutSecs) * time.Second
}

// FromJSON decodes config primitives from a JSON object, tolerating a
// document missing some or all fields: any field gjson cannot find keeps
// its Default() value (spec.md §6 "missing fields fall back to defaults").
func FromJSON(raw []byte) Config {
	c := Default()
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return c
	}

	if v := gjson.GetBytes(raw, "reaper_interval_secs"); v.Exists() {
		c.ReaperIntervalSecs = int(v.Int())
	}
	if v := gjson.GetBytes(raw, "reaper_max_session_secs"); v.Exists() {
		c.ReaperMaxSessionSecs = int(v.Int())
	}
	if v := gjson.GetBytes(raw, "healthcheck_interval_secs"); v.Exists() {
		c.HealthcheckIntervalSecs = int(v.Int())
	}
	if v := gjson.GetBytes(raw, "healthcheck_timeout_secs"); v.Exists() {
		c.HealthcheckTimeoutSecs = int(v.Int())
	}
	if v := gjson.GetBytes(raw, "proxy_bind_ip"); v.Exists() {
		c.ProxyBindIP = v.String()
	}
	if v := gjson.GetBytes(raw, "proxy_bind_port"); v.Exists() {
		c.ProxyBindPort = int(v.Int())
	}
	if v := gjson.GetBytes(raw, "admin_bind_ip"); v.Exists() {
		c.AdminBindIP = v.String()
	}
	if v := gjson.GetBytes(raw, "admin_bind_port"); v.Exists() {
		c.AdminBindPort = int(v.Int())
	}
	return c
}

// FromDocument decodes config primitives out of the nested "config" key
// of the top-level persistence document (spec.md §6's persistence
// format: `{"hubs": [...], "config": {...}}`), tolerating a missing or
// malformed "config" section by falling back to defaults.
func FromDocument(raw []byte) Config {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Default()
	}
	cfgSection := gjson.GetBytes(raw, "config")
	if !cfgSection.Exists() {
		return Default()
	}
	return FromJSON([]byte(cfgSection.Raw))
}

// ApplyKeyed patches one admin-mutable key (spec.md §6's keyed
// set_config) by round-tripping through the in-memory JSON
// representation with sjson, rather than a hand-rolled per-key switch.
func ApplyKeyed(c Config, key string, value int) (Config, error) {
	field, ok := map[string]string{
		KeyHealthcheckInterval: "healthcheck_interval_secs",
		KeyHealthcheckTimeout:  "healthcheck_timeout_secs",
		KeyReaperInterval:      "reaper_interval_secs",
		KeyReaperMaxDuration:   "reaper_max_session_secs",
	}[key]
	if !ok {
		return c, errUnknownKey(key)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return c, err
	}
	patched, err := sjson.SetBytes(raw, field, value)
	if err != nil {
		return c, err
	}
	return FromJSON(patched), nil
}

type errUnknownKey string

func (e errUnknownKey) Error() string { return "unknown config key: " + string(e) }
