// Package health implements the Health Poller (spec.md §4.3): a single
// periodic task that fans out GET {hub}/status to every registered hub
// concurrently, updating readiness and fullness on each response.
//
// Grounded on the teacher's internal/health/checker.go per-backend check
// loop and threshold bookkeeping, restructured from "one goroutine per
// backend on its own interval" to "one tick, fan out to every hub" per
// spec.md §4.3's "snapshot, then parallel GETs" model.
package health

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/hubrouter/internal/hub"
	"github.com/wudi/hubrouter/internal/metrics"
)

// IntervalAndTimeout is read by the poller at every tick boundary so
// config edits made through the admin surface apply without a restart.
type IntervalAndTimeout interface {
	HealthcheckIntervalAndTimeout() (interval, timeout time.Duration)
}

// Poller runs the periodic healthcheck loop.
type Poller struct {
	registry *hub.Registry
	cfg      IntervalAndTimeout
	client   *http.Client
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewPoller builds a Poller over registry, reading tick timing from cfg.
func NewPoller(registry *hub.Registry, cfg IntervalAndTimeout, logger *zap.Logger, mc *metrics.Collector) *Poller {
	return &Poller{
		registry: registry,
		cfg:      cfg,
		client:   &http.Client{},
		logger:   logger,
		metrics:  mc,
	}
}

// Run blocks, ticking at the configured healthcheck interval, until ctx
// is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	interval, _ := p.cfg.HealthcheckIntervalAndTimeout()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)

			newInterval, _ := p.cfg.HealthcheckIntervalAndTimeout()
			if newInterval != interval {
				interval = newInterval
				ticker.Reset(interval)
			}
		}
	}
}

// tick snapshots (uuid, url) pairs, issues every /status GET concurrently,
// and applies each result to the hub still present in the registry. A hub
// that vanishes from the registry between snapshot and update is skipped
// silently (spec.md §4.3) — Get reports this by returning ok=false.
func (p *Poller) tick(ctx context.Context) {
	hubs := p.registry.Iter()
	if len(hubs) == 0 {
		return
	}

	_, timeout := p.cfg.HealthcheckIntervalAndTimeout()

	done := make(chan struct{}, len(hubs))
	for _, h := range hubs {
		h := h
		go func() {
			defer func() { done <- struct{}{} }()
			p.checkOne(ctx, h, timeout)
		}()
	}
	for range hubs {
		<-done
	}

	ready, unhealthy := 0, 0
	for _, h := range p.registry.Iter() {
		if h.Readiness() == hub.Ready {
			ready++
		} else {
			unhealthy++
		}
	}
	if p.metrics != nil {
		p.metrics.SetHubsByReadiness(ready, unhealthy)
	}
}

// checkOne performs one hub's healthcheck and applies the state-machine
// transition, per spec.md §4.3's response-path table.
func (p *Poller) checkOne(ctx context.Context, h *hub.Hub, timeout time.Duration) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, h.URL+"/status", nil)
	if err != nil {
		p.fail(h)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(h)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.fail(h)
		return
	}

	decoded, err := hub.DecodeStatus(body)
	if err != nil {
		p.fail(h)
		return
	}

	// Still registered? The hub may have been deregistered mid-poll.
	if _, ok := p.registry.Get(h.UUID); !ok {
		return
	}

	if decoded.IsReady {
		h.SucceedHealthcheck()
	} else {
		p.fail(h)
	}
	h.ReplaceFullnessAndStereotypes(decoded.Fullness, decoded.Stereotypes, decoded.RawReady)
	if p.metrics != nil {
		for key, f := range decoded.Fullness {
			p.metrics.SetHubFullness(h.UUID, key.BrowserName, key.PlatformName, f.Active)
		}
	}

	if decoded.RawReady != decoded.IsReady {
		p.logger.Debug("hub status ready flag disagrees with node-presence signal",
			zap.String("hub_uuid", h.UUID), zap.Bool("raw_ready", decoded.RawReady), zap.Bool("node_presence_ready", decoded.IsReady))
	}
}

func (p *Poller) fail(h *hub.Hub) {
	h.FailHealthcheck()
	if p.metrics != nil {
		p.metrics.RecordHealthcheckFailure(h.UUID)
	}
}
