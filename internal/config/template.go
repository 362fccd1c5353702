package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDefault emits a starter config to path. Refuses to overwrite.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	cfg := Config{}
	cfg.applyDefaults(nil)
	cfg.Exchange.OwnerAddress = "0xYOUR_WALLET_ADDRESS"

	doc := map[string]any{
		"app": map[string]any{
			"env":       cfg.App.Env,
			"log_level": cfg.App.LogLevel,
			"http_addr": cfg.App.HTTPAddr,
		},
		"exchange": map[string]any{
			"base_url":        cfg.Exchange.BaseURL,
			"data_url":        cfg.Exchange.DataURL,
			"api_key":         "",
			"owner_address":   cfg.Exchange.OwnerAddress,
			"timeout_seconds": cfg.Exchange.TimeoutSeconds,
		},
		"engine": map[string]any{
			"tick_interval":               cfg.Engine.TickInterval,
			"alert_interval":              cfg.Engine.AlertInterval,
			"positions_freshness_seconds": cfg.Engine.FreshnessSeconds,
			"dust_value_usd":              cfg.Engine.DustValueUSD,
		},
		"store": map[string]any{
			"path":           cfg.Store.Path,
			"audit_log_path": cfg.Store.AuditLogPath,
		},
		"risk": map[string]any{
			"enabled":                      cfg.Risk.Enabled,
			"max_position_value_per_token": cfg.Risk.MaxPositionValuePerToken,
			"max_daily_loss":               cfg.Risk.MaxDailyLoss,
			"max_total_exposure":           cfg.Risk.MaxTotalExposure,
		},
		"notify": map[string]any{
			"telegram": map[string]any{
				"enabled":   false,
				"bot_token": "",
				"chat_id":   "",
			},
		},
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
