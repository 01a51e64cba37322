package affinity

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/hubrouter/internal/router"
)

type fixedConfig struct {
	interval time.Duration
	maxAge   time.Duration
}

func (f fixedConfig) ReaperIntervalAndMax() (time.Duration, time.Duration) {
	return f.interval, f.maxAge
}

func TestReaperEvictsStaleSessionOnTick(t *testing.T) {
	m := New()
	m.Insert("stale", router.RoutingDecision{HubUUID: "u1", HubURL: "http://h1", DecisionTime: time.Now().Add(-3 * time.Second)})

	reaper := NewReaper(m, fixedConfig{interval: 20 * time.Millisecond, maxAge: 2 * time.Second}, zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx) }()

	deadline := time.After(500 * time.Millisecond)
	for {
		if _, ok := m.Get("stale"); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reaper to evict stale session")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
