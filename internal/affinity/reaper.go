package affinity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/hubrouter/internal/metrics"
)

// IntervalAndMaxAge is read by the reaper at each tick boundary, so
// config changes made through the admin surface take effect without
// restarting the loop (spec.md §4.7).
type IntervalAndMaxAge interface {
	ReaperIntervalAndMax() (interval, maxAge time.Duration)
}

// Reaper periodically evicts affinity map entries older than the
// configured maximum session lifetime (spec.md §4.6).
type Reaper struct {
	m       *Map
	cfg     IntervalAndMaxAge
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewReaper builds a Reaper over m, reading its interval/max-age from cfg
// at each tick.
func NewReaper(m *Map, cfg IntervalAndMaxAge, logger *zap.Logger, mc *metrics.Collector) *Reaper {
	return &Reaper{m: m, cfg: cfg, logger: logger, metrics: mc}
}

// Run blocks until ctx is cancelled, ticking at the configured reaper
// interval and evicting stale entries on every tick.
func (r *Reaper) Run(ctx context.Context) error {
	interval, _ := r.cfg.ReaperIntervalAndMax()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, maxAge := r.cfg.ReaperIntervalAndMax()
			evicted := r.m.EvictOlderThan(maxAge)
			if evicted > 0 {
				r.logger.Info("reaper evicted stale sessions", zap.Int("count", evicted))
			}
			if r.metrics != nil {
				r.metrics.RecordReaperEvictions(evicted)
				r.metrics.SetAffinityMapSize(r.m.Len())
			}

			newInterval, _ := r.cfg.ReaperIntervalAndMax()
			if newInterval != interval {
				interval = newInterval
				ticker.Reset(interval)
			}
		}
	}
}
