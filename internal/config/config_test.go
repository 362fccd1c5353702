package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
exchange:
  owner_address: "0xabc"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "5s", cfg.Engine.TickInterval)
	assert.Equal(t, 1.0, cfg.Engine.DustValueUSD)
	assert.True(t, cfg.Risk.Enabled)
	assert.Equal(t, 200.0, cfg.Risk.MaxDailyLoss)
	assert.NotEmpty(t, cfg.Exchange.BaseURL)
}

func TestLoadKeepsExplicitZeroValues(t *testing.T) {
	path := writeConfig(t, `
exchange:
  owner_address: "0xabc"
risk:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Risk.Enabled)
}

func TestLoadRejectsMissingOwner(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner_address")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	path := writeConfig(t, `
exchange:
  owner_address: "0xabc"
engine:
  tick_interval: "soon"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_interval")
}

func TestTelegramValidation(t *testing.T) {
	path := writeConfig(t, `
exchange:
  owner_address: "0xabc"
notify:
  telegram:
    enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0xYOUR_WALLET_ADDRESS", cfg.Exchange.OwnerAddress)
	assert.Equal(t, "5s", cfg.Engine.TickInterval)

	// Never clobber an existing file.
	require.Error(t, WriteDefault(path))
}
