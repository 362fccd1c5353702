package config

import (
	"fmt"
	"strings"

	"polytrader/internal/scheduler"
)

func validate(c *Config) error {
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if strings.TrimSpace(e.BaseURL) == "" {
		return fmt.Errorf("exchange.base_url cannot be empty")
	}
	if strings.TrimSpace(e.OwnerAddress) == "" {
		return fmt.Errorf("exchange.owner_address cannot be empty")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if _, ok := scheduler.ParseIntervalDuration(e.TickInterval); !ok {
		return fmt.Errorf("engine.tick_interval is not a valid interval: %q", e.TickInterval)
	}
	if _, ok := scheduler.ParseIntervalDuration(e.AlertInterval); !ok {
		return fmt.Errorf("engine.alert_interval is not a valid interval: %q", e.AlertInterval)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token required when telegram enabled")
	}
	if strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.chat_id required when telegram enabled")
	}
	return nil
}
