package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"polytrader/internal/alerts"
	"polytrader/internal/clob"
	ptcfg "polytrader/internal/config"
	"polytrader/internal/engine"
	"polytrader/internal/logger"
	"polytrader/internal/notify"
	"polytrader/internal/pkg/circuit"
	"polytrader/internal/positions"
	"polytrader/internal/risk"
	"polytrader/internal/scheduler"
	"polytrader/internal/service"
	"polytrader/internal/store"
	"polytrader/internal/store/auditlog"
	sqlitestore "polytrader/internal/store/sqlite"
	apihttp "polytrader/internal/transport/http"
)

const (
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

// AppBuilder assembles the process from config. The override hooks let tests
// swap the outer edges (store, exchange, notifier) without touching wiring.
type AppBuilder struct {
	cfg *ptcfg.Config

	storeOverride    store.Store
	clientOverride   clob.Client
	notifierOverride notify.Notifier
}

type AppBuilderOption func(*AppBuilder)

func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) { b.storeOverride = st }
}

func WithClient(c clob.Client) AppBuilderOption {
	return func(b *AppBuilder) { b.clientOverride = c }
}

func WithNotifier(n notify.Notifier) AppBuilderOption {
	return func(b *AppBuilder) { b.notifierOverride = n }
}

func NewAppBuilder(cfg *ptcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	tickInterval, ok := scheduler.ParseIntervalDuration(cfg.Engine.TickInterval)
	if !ok {
		return nil, fmt.Errorf("invalid tick interval %q", cfg.Engine.TickInterval)
	}
	alertInterval, ok := scheduler.ParseIntervalDuration(cfg.Engine.AlertInterval)
	if !ok {
		return nil, fmt.Errorf("invalid alert interval %q", cfg.Engine.AlertInterval)
	}

	st, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	var audit *auditlog.Store
	if cfg.Store.AuditLogPath != "" {
		audit, err = auditlog.New(cfg.Store.AuditLogPath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
	}

	client, err := b.buildClient(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	session := engine.NewSession(cfg.Exchange.OwnerAddress, client)

	cache := positions.NewCache(client, st,
		positions.WithFreshness(time.Duration(cfg.Engine.FreshnessSeconds)*time.Second),
		positions.WithDustValue(cfg.Engine.DustValueUSD),
	)
	tracker := risk.NewTracker(st)
	validator := risk.NewValidator(st, tracker, positions.HoldingsValue{Cache: cache, Owner: session.Owner})
	notifier := b.buildNotifier(cfg)

	// One lock covers the tick's load→save span and every command-surface
	// mutation, so a pause or cancel landing mid-tick is never reverted by
	// the tick's batched write.
	gate := &sync.Mutex{}

	params := engine.Params{
		Repo:      st,
		Session:   session,
		Cache:     cache,
		Validator: validator,
		Tracker:   tracker,
		Notifier:  notifier,
		Gate:      gate,
	}
	svcOpts := []service.Option{service.WithGate(gate)}
	if audit != nil {
		params.Audit = audit
		svcOpts = append(svcOpts, service.WithExecutionLog(audit))
	}
	eng := engine.New(params)
	monitor := alerts.NewMonitor(st, client, notifier)

	svc := service.New(st, session, cache, validator, svcOpts...)
	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Service: svc,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	logger.Infof("app: assembled owner=%s tick=%s alerts=%s store=%s",
		session.Owner, tickInterval, alertInterval, cfg.Store.Path)

	return &App{
		cfg:           cfg,
		store:         st,
		audit:         audit,
		engine:        eng,
		monitor:       monitor,
		server:        server,
		breaker:       circuit.NewBreaker("tick", breakerThreshold, breakerTimeout),
		tickInterval:  tickInterval,
		alertInterval: alertInterval,
	}, nil
}

func (b *AppBuilder) buildStore(cfg *ptcfg.Config) (store.Store, error) {
	if b.storeOverride != nil {
		return b.storeOverride, nil
	}
	defaults := risk.Settings{
		MaxPositionValuePerToken: cfg.Risk.MaxPositionValuePerToken,
		MaxDailyLoss:             cfg.Risk.MaxDailyLoss,
		MaxTotalExposure:         cfg.Risk.MaxTotalExposure,
		Enabled:                  cfg.Risk.Enabled,
	}
	st, err := sqlitestore.NewSqliteStore(cfg.Store.Path, defaults)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func (b *AppBuilder) buildClient(cfg *ptcfg.Config) (clob.Client, error) {
	if b.clientOverride != nil {
		return b.clientOverride, nil
	}
	return clob.NewRESTClient(clob.RESTConfig{
		APIURL:         cfg.Exchange.BaseURL,
		DataAPIURL:     cfg.Exchange.DataURL,
		APIKey:         cfg.Exchange.APIKey,
		TimeoutSeconds: cfg.Exchange.TimeoutSeconds,
	})
}

func (b *AppBuilder) buildNotifier(cfg *ptcfg.Config) notify.Notifier {
	if b.notifierOverride != nil {
		return b.notifierOverride
	}
	if cfg.Notify.Telegram.Enabled {
		return notify.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}
	return notify.LogNotifier{}
}
