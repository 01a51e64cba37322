// Package metrics exposes hub-router state as Prometheus collectors,
// served by the admin surface at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the Prometheus registry and the gauges/counters the
// poller, forwarder, reaper, and admin surface update as they run.
type Collector struct {
	registry *prometheus.Registry

	hubsByReadiness *prometheus.GaugeVec
	hubFullness     *prometheus.GaugeVec
	routingDecisions *prometheus.CounterVec
	affinityMapSize  prometheus.Gauge
	reaperEvictions  prometheus.Counter
	healthcheckFails *prometheus.CounterVec
}

// NewCollector builds a Collector with its own private registry, so
// metrics registration never collides with the default global registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		hubsByReadiness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hubrouter_hubs_by_readiness",
			Help: "Number of registered hubs by readiness state.",
		}, []string{"readiness"}),
		hubFullness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hubrouter_hub_fullness_active_slots",
			Help: "Active slot count per hub and stereotype key.",
		}, []string{"hub_uuid", "browser_name", "platform_name"}),
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubrouter_routing_decisions_total",
			Help: "Routing decisions by outcome.",
		}, []string{"outcome"}),
		affinityMapSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubrouter_affinity_map_size",
			Help: "Current number of entries in the session affinity map.",
		}),
		reaperEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hubrouter_reaper_evictions_total",
			Help: "Total number of affinity map entries evicted by the reaper.",
		}),
		healthcheckFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubrouter_healthcheck_failures_total",
			Help: "Total healthcheck failures per hub.",
		}, []string{"hub_uuid"}),
	}

	reg.MustRegister(
		c.hubsByReadiness,
		c.hubFullness,
		c.routingDecisions,
		c.affinityMapSize,
		c.reaperEvictions,
		c.healthcheckFails,
	)

	return c
}

// SetHubsByReadiness replaces the current readiness-count gauges.
func (c *Collector) SetHubsByReadiness(ready, unhealthy int) {
	c.hubsByReadiness.WithLabelValues("ready").Set(float64(ready))
	c.hubsByReadiness.WithLabelValues("unhealthy").Set(float64(unhealthy))
}

// SetHubFullness records the active-slot count for one hub/stereotype key.
func (c *Collector) SetHubFullness(hubUUID, browserName, platformName string, active int) {
	c.hubFullness.WithLabelValues(hubUUID, browserName, platformName).Set(float64(active))
}

// DeleteHub removes a hub's fullness series, called on deregister.
func (c *Collector) DeleteHub(hubUUID string) {
	c.hubFullness.DeletePartialMatch(prometheus.Labels{"hub_uuid": hubUUID})
	c.healthcheckFails.DeletePartialMatch(prometheus.Labels{"hub_uuid": hubUUID})
}

// RecordRoutingDecision increments the outcome counter (the forwarder
// passes "ok", or the error's Kind such as "NoHealthyNodes",
// "UnableToSatisfyCapabilities", "NoDecision").
func (c *Collector) RecordRoutingDecision(outcome string) {
	c.routingDecisions.WithLabelValues(outcome).Inc()
}

// SetAffinityMapSize records the current affinity map size.
func (c *Collector) SetAffinityMapSize(n int) {
	c.affinityMapSize.Set(float64(n))
}

// RecordReaperEvictions adds n evictions from the most recent reaper tick.
func (c *Collector) RecordReaperEvictions(n int) {
	c.reaperEvictions.Add(float64(n))
}

// RecordHealthcheckFailure increments the per-hub healthcheck failure counter.
func (c *Collector) RecordHealthcheckFailure(hubUUID string) {
	c.healthcheckFails.WithLabelValues(hubUUID).Inc()
}

// Handler returns the HTTP handler the admin surface mounts at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
