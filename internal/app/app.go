package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"polytrader/internal/alerts"
	ptcfg "polytrader/internal/config"
	"polytrader/internal/engine"
	"polytrader/internal/logger"
	"polytrader/internal/pkg/circuit"
	"polytrader/internal/scheduler"
	"polytrader/internal/store"
	"polytrader/internal/store/auditlog"
	apihttp "polytrader/internal/transport/http"
)

// App owns process-level orchestration: config, storage, the two tick loops
// and the HTTP server.
type App struct {
	cfg     *ptcfg.Config
	cfgPath string

	store   store.Store
	audit   *auditlog.Store
	engine  *engine.Engine
	monitor *alerts.Monitor
	server  *apihttp.Server
	breaker *circuit.Breaker

	tickInterval  time.Duration
	alertInterval time.Duration
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *ptcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// WatchConfig enables hot reload of the config file while the app runs.
func (a *App) WatchConfig(path string) {
	if a != nil {
		a.cfgPath = path
	}
}

// Run starts everything and blocks until ctx is cancelled or a component
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.runTickLoop(ctx)
		return nil
	})

	group.Go(func() error {
		a.runAlertLoop(ctx)
		return nil
	})

	if a.cfgPath != "" {
		group.Go(func() error {
			return ptcfg.Watch(ctx, a.cfgPath, a.applyConfig)
		})
	}

	return group.Wait()
}

// runTickLoop drives the order engine behind the circuit breaker: a run of
// failing ticks backs off instead of hammering a broken upstream.
func (a *App) runTickLoop(ctx context.Context) {
	s := scheduleFor(ctx, "engine", a.tickInterval)
	s.RunImmediately = a.cfg.Engine.RunTickImmediately
	s.Start(func() {
		if !a.breaker.Allow() {
			logger.Warnf("app: tick skipped, breaker open")
			return
		}
		if err := a.engine.RunTick(ctx); err != nil {
			logger.Errorf("app: tick failed: %v", err)
			a.breaker.RecordFailure()
			return
		}
		a.breaker.RecordSuccess()
	})
}

func (a *App) runAlertLoop(ctx context.Context) {
	s := scheduleFor(ctx, "alerts", a.alertInterval)
	s.Start(func() {
		if err := a.monitor.RunTick(ctx); err != nil {
			logger.Warnf("app: alert sweep failed: %v", err)
		}
	})
}

// applyConfig picks up the hot-reloadable settings. Cadences, addresses and
// store paths need a restart.
func (a *App) applyConfig(cfg *ptcfg.Config) {
	if cfg == nil {
		return
	}
	logger.SetLevel(cfg.App.LogLevel)
	a.cfg.App.LogLevel = cfg.App.LogLevel
	logger.Infof("app: applied reloaded config (log_level=%s)", cfg.App.LogLevel)
}

func scheduleFor(ctx context.Context, name string, interval time.Duration) *scheduler.IntervalScheduler {
	return scheduler.NewIntervalScheduler(ctx, name, interval)
}

func (a *App) close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Warnf("app: closing audit log: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("app: closing store: %v", err)
		}
	}
}
