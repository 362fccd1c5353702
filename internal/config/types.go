package config

import "strings"

// Config is the process configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	Exchange ExchangeConfig `toml:"exchange"`
	Engine   EngineConfig   `toml:"engine"`
	Store    StoreConfig    `toml:"store"`
	Risk     RiskConfig     `toml:"risk"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
}

// ExchangeConfig describes the CLOB REST endpoints and trading identity.
type ExchangeConfig struct {
	BaseURL        string `toml:"base_url"`
	DataURL        string `toml:"data_url"`
	APIKey         string `toml:"api_key"`
	OwnerAddress   string `toml:"owner_address"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EngineConfig holds the tick cadences and cache tuning. Intervals use the
// compact form ("5s", "15m").
type EngineConfig struct {
	TickInterval       string  `toml:"tick_interval"`
	AlertInterval      string  `toml:"alert_interval"`
	FreshnessSeconds   int     `toml:"positions_freshness_seconds"`
	DustValueUSD       float64 `toml:"dust_value_usd"`
	RunTickImmediately bool    `toml:"run_tick_immediately"`
}

type StoreConfig struct {
	Path         string `toml:"path"`
	AuditLogPath string `toml:"audit_log_path"`
}

// RiskConfig seeds the stored risk settings when none exist yet; later edits
// happen over the command surface.
type RiskConfig struct {
	MaxPositionValuePerToken float64 `toml:"max_position_value_per_token"`
	MaxDailyLoss             float64 `toml:"max_daily_loss"`
	MaxTotalExposure         float64 `toml:"max_total_exposure"`
	Enabled                  bool    `toml:"enabled"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks which field paths were explicitly present in the file, so an
// explicit zero survives defaulting.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault is one defaulting rule for one field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
