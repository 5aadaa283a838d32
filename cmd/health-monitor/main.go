package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Healthwatch/internal/config/health-monitor"
	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/obs"
	monitor "github.com/NordCoder/Healthwatch/internal/services/health-monitor"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func serviceDefinitions(cfg *config.Config) []health.ServiceDefinition {
	defs := make([]health.ServiceDefinition, 0, len(cfg.Services))
	for _, s := range cfg.Services {
		defs = append(defs, health.ServiceDefinition{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			URL:         s.URL,
			HealthPath:  s.HealthPath,
		})
	}
	return defs
}

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPath), "path to the YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("health-monitor: %v", err)
	}
}

// run owns every resource; startup failures return through the deferred closers.
func run(configPath string) (err error) {
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	l, level, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer obs.Sync(l)
	defer zap.ReplaceGlobals(l)()
	watchLogLevel(root, configPath, level, l)
	l.Info("starting health-monitor",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.Int("services", len(cfg.Services)),
		zap.String("storage", cfg.Storage.Driver))
	defer func() {
		if err != nil {
			l.Error("health-monitor stopped", zap.Error(err))
		} else {
			l.Info("bye")
		}
	}()

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	}

	otelShutdown, err := initOTel(root, cfg)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() {
		ctx, cancel := shutdownCtx()
		defer cancel()
		err = multierr.Append(err, otelShutdown(ctx))
	}()

	store, err := initStorage(root, cfg, l)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.close()

	pub, prod, outboxRunner := initEvents(root, cfg, store.outbox, l)
	if prod != nil {
		defer func() { err = multierr.Append(err, prod.Close()) }()
	}

	clock := systemClock{}
	defs := serviceDefinitions(cfg)

	incidents := monitor.NewIncidentManager(store.incidents, clock, l)
	if err := incidents.Initialize(root); err != nil {
		return fmt.Errorf("load incidents: %w", err)
	}
	notifications := monitor.NewNotificationManager(store.notifications, pub, l)
	if err := notifications.Initialize(root); err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	loop := &monitor.Loop{
		Log:     l.With(zap.String("component", "monitor_loop")),
		Checker: monitor.NewHealthChecker(monitor.NewHTTPClient(cfg.Monitor.CheckTimeout), defs, cfg.Monitor.CheckTimeout, cfg.Monitor.UserAgent, l),
		Windows: monitor.NewSlidingWindowStore(defs, monitor.WindowConfig{
			Size:        cfg.Monitor.WindowSize,
			TTL:         cfg.Monitor.WindowTTL,
			Threshold:   cfg.Monitor.FailureThreshold,
			SnapshotTTL: cfg.Monitor.SnapshotTTL,
			Interval:    cfg.Monitor.Interval,
		}),
		History:       store.history,
		Incidents:     incidents,
		Notifications: notifications,
		Events:        pub,
		Clock:         clock,
		Cfg: monitor.LoopConfig{
			Interval:         cfg.Monitor.Interval,
			HistoryRetention: cfg.Monitor.HistoryRetention,
			PruneEvery:       cfg.Monitor.PruneEvery,
		},
	}

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, store.ping, l,
		readRoutes(loop, store.history, store.incidents, l)...)
	defer func() {
		ctx, cancel := shutdownCtx()
		defer cancel()
		err = multierr.Append(err, ms.Shutdown(ctx))
	}()

	if outboxRunner != nil {
		outboxRunner.Start(root)
		defer outboxRunner.Wait()
	}

	if err := loop.Run(root); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("monitor loop: %w", err)
	}
	l.Info("shutdown signal")
	return nil
}
