package config

import "strings"

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":8080"
	defaultExchangeBase   = "https://clob.polymarket.com"
	defaultExchangeData   = "https://data-api.polymarket.com"
	defaultExchangeTO     = 10
	defaultTickInterval   = "5s"
	defaultAlertInterval  = "10s"
	defaultFreshness      = 5
	defaultDustValue      = 1.0
	defaultStorePath      = "/data/db/polytrader.db"
	defaultAuditLogPath   = "/data/db/executions.db"
	defaultRiskTokenCap   = 500.0
	defaultRiskDailyLoss  = 200.0
	defaultRiskExposure   = 2000.0
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.base_url", &e.BaseURL, defaultExchangeBase),
		stringFieldDefault("exchange.data_url", &e.DataURL, defaultExchangeData),
		fieldDefault{
			key:   "exchange.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultExchangeTO },
		},
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("engine.tick_interval", &e.TickInterval, defaultTickInterval),
		stringFieldDefault("engine.alert_interval", &e.AlertInterval, defaultAlertInterval),
		fieldDefault{
			key:   "engine.positions_freshness_seconds",
			need:  func() bool { return e.FreshnessSeconds <= 0 },
			apply: func() { e.FreshnessSeconds = defaultFreshness },
		},
		fieldDefault{
			key:   "engine.dust_value_usd",
			need:  func() bool { return e.DustValueUSD <= 0 },
			apply: func() { e.DustValueUSD = defaultDustValue },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		stringFieldDefault("store.audit_log_path", &s.AuditLogPath, defaultAuditLogPath),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.max_position_value_per_token",
			need:  func() bool { return r.MaxPositionValuePerToken <= 0 },
			apply: func() { r.MaxPositionValuePerToken = defaultRiskTokenCap },
		},
		fieldDefault{
			key:   "risk.max_daily_loss",
			need:  func() bool { return r.MaxDailyLoss <= 0 },
			apply: func() { r.MaxDailyLoss = defaultRiskDailyLoss },
		},
		fieldDefault{
			key:   "risk.max_total_exposure",
			need:  func() bool { return r.MaxTotalExposure <= 0 },
			apply: func() { r.MaxTotalExposure = defaultRiskExposure },
		},
		boolFieldDefault("risk.enabled", &r.Enabled, true),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
