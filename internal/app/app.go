// Package app wires every component into the running process: the
// state container, the health poller, the affinity reaper, the session
// forwarder, and the admin surface, plus their lifecycles.
//
// Grounded on the teacher's internal/gateway/server.go Server
// (Start/Run/Shutdown) and cmd/ingress/main.go's errgroup-based
// multi-listener run loop, combined here into a single errgroup that
// also carries the two background tasks spec.md §4.7 calls out as
// needing no broadcast/notify mechanism between them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/hubrouter/internal/affinity"
	"github.com/wudi/hubrouter/internal/admin"
	"github.com/wudi/hubrouter/internal/config"
	"github.com/wudi/hubrouter/internal/forwarder"
	"github.com/wudi/hubrouter/internal/health"
	"github.com/wudi/hubrouter/internal/hub"
	"github.com/wudi/hubrouter/internal/metrics"
	"github.com/wudi/hubrouter/internal/router"
	"github.com/wudi/hubrouter/internal/state"
	"github.com/wudi/hubrouter/internal/tracing"
)

// App owns every long-lived component.
type App struct {
	state  *state.State
	logger *zap.Logger

	poller        *health.Poller
	reaper        *affinity.Reaper
	tracer        *tracing.Tracer
	configWatcher *config.Watcher

	proxyServer *http.Server
	adminServer *http.Server
}

// Options configures a new App.
type Options struct {
	ConfigPath     string
	Config         config.Config
	Hubs           []hub.Meta
	Logger         *zap.Logger
	TracingEnabled bool
}

func newRegistry(metas []hub.Meta) *hub.Registry {
	r := hub.NewRegistry()
	for _, m := range metas {
		r.Insert(hub.New(m))
	}
	return r
}

// New assembles an App from already-loaded config and hub metadata
// (spec.md §4.7's startup sequence: load, rebuild registry, start tasks).
func New(opts Options) *App {
	mc := metrics.NewCollector()
	tracer := tracing.New(opts.TracingEnabled)

	registry := newRegistry(opts.Hubs)
	aff := affinity.New()
	st := state.New(opts.ConfigPath, opts.Config, registry, aff)

	r := router.New(registry, nil)
	fwd := forwarder.New(r, aff, tracer, mc, opts.Logger)

	poller := health.NewPoller(registry, st, opts.Logger, mc)
	reaper := affinity.NewReaper(aff, st, opts.Logger, mc)

	adminSrv := admin.New(st, mc, opts.Logger)

	watcher, err := config.NewWatcher(opts.ConfigPath, st.SetConfig, opts.Logger)
	if err != nil {
		opts.Logger.Warn("config watcher disabled", zap.Error(err))
		watcher = nil
	}

	a := &App{
		state:         st,
		logger:        opts.Logger,
		poller:        poller,
		reaper:        reaper,
		tracer:        tracer,
		configWatcher: watcher,
		proxyServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", opts.Config.ProxyBindIP, opts.Config.ProxyBindPort),
			Handler: fwd,
		},
		adminServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", opts.Config.AdminBindIP, opts.Config.AdminBindPort),
			Handler: adminSrv.Handler(),
		},
	}
	return a
}

// State exposes the owned State container, e.g. for a final persist on shutdown.
func (a *App) State() *state.State {
	return a.state
}

// Run starts every background task and both HTTP servers, blocking until
// ctx is cancelled or any one of them fails, then shuts all of them down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreShutdownErr(a.poller.Run(gctx))
	})
	g.Go(func() error {
		return ignoreShutdownErr(a.reaper.Run(gctx))
	})

	g.Go(func() error {
		a.logger.Info("proxy listener starting", zap.String("addr", a.proxyServer.Addr))
		if err := a.proxyServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("proxy server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info("admin listener starting", zap.String("addr", a.adminServer.Addr))
		if err := a.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})

	if a.configWatcher != nil {
		g.Go(func() error {
			a.configWatcher.Run()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// ignoreShutdownErr treats a background task's own context cancellation as
// clean termination, not a failure the group should surface: Run is
// expected to return nil when the caller cancels ctx deliberately (e.g. on
// SIGTERM), with any real failure (an HTTP listener erroring, say) still
// propagating and triggering the other tasks' shutdown via gctx.
func ignoreShutdownErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// shutdown gracefully stops both HTTP servers and the tracer provider.
// Background tasks (poller/reaper) observe ctx cancellation on their own
// next tick boundary and return on their own.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var firstErr error
	if err := a.proxyServer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("proxy server shutdown: %w", err)
	}
	if err := a.adminServer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("admin server shutdown: %w", err)
	}
	if err := a.tracer.Close(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("tracer shutdown: %w", err)
	}
	if a.configWatcher != nil {
		if err := a.configWatcher.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("config watcher shutdown: %w", err)
		}
	}
	return firstErr
}
