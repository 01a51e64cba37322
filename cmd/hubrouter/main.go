package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wudi/hubrouter/internal/app"
	"github.com/wudi/hubrouter/internal/logging"
	"github.com/wudi/hubrouter/internal/state"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "./config.json", "Path to the hub/config persistence file")
	showVersion := flag.Bool("version", false, "Show version information")
	enableTracing := flag.Bool("tracing", false, "Enable in-process OpenTelemetry tracing spans")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hubrouter %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	logger, logCloser, err := logging.New(logging.Config{Level: "info"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if logCloser != nil {
		defer logCloser.Close()
	}
	logging.SetGlobal(logger)

	cfg, hubs, err := state.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", zap.String("path", *configPath), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("loaded config",
		zap.String("path", *configPath),
		zap.Int("hub_count", len(hubs)),
		zap.Int("reaper_interval_secs", cfg.ReaperIntervalSecs),
		zap.Int("healthcheck_interval_secs", cfg.HealthcheckIntervalSecs),
	)

	a := app.New(app.Options{
		ConfigPath:     *configPath,
		Config:         cfg,
		Hubs:           hubs,
		Logger:         logger,
		TracingEnabled: *enableTracing,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting hubrouter",
		zap.String("version", version),
		zap.String("proxy_addr", fmt.Sprintf("%s:%d", cfg.ProxyBindIP, cfg.ProxyBindPort)),
		zap.String("admin_addr", fmt.Sprintf("%s:%d", cfg.AdminBindIP, cfg.AdminBindPort)),
	)

	if err := a.Run(ctx); err != nil {
		logger.Error("hubrouter exited with error", zap.Error(err))
		os.Exit(1)
	}

	if err := a.State().Persist(); err != nil {
		logger.Error("failed to persist state on shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("hubrouter shut down cleanly")
}
