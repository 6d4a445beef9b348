package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeSettings(t, `{
		"Telegram": {
			"api_id": 12345,
			"api_hash": "abc",
			"gateway": "ws://localhost:8080/updates",
			"channels": {"whiteList": ["gold vip"], "blackList": []}
		},
		"Notification": {"token": "bot-token", "chatId": 777},
		"MetaTrader": {
			"server": "Demo-Server",
			"username": "1001",
			"password": "secret",
			"gateway": "http://localhost:5000",
			"lot": "1%",
			"HighRisk": true,
			"SaveProfits": [50, 25],
			"CloserPrice": 0.3,
			"expirePendinOrderInMinutes": 90
		},
		"Timer": {"start": "09:30", "end": "23:00"},
		"logLevel": "debug"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Telegram.APIID)
	assert.Equal(t, "ws://localhost:8080/updates", cfg.Telegram.Gateway)
	assert.Equal(t, int64(777), cfg.Notification.ChatID)
	assert.True(t, cfg.MetaTrader.HighRisk)
	assert.Equal(t, []int{50, 25}, cfg.MetaTrader.SaveProfits)
	assert.Equal(t, 90, cfg.MetaTrader.ExpirePendingMinutes)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Defaults applied by Validate.
	assert.Equal(t, "signals.db", cfg.DatabasePath)
	assert.True(t, cfg.CloseOnTrail())
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeSettings(t, `{"MetaTrader": {"lotSize": 2}}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("MT_PASSWORD", "hunter2")
	path := writeSettings(t, `{"MetaTrader": {"password": "${MT_PASSWORD}"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.MetaTrader.Password)
}

func TestPath(t *testing.T) {
	t.Setenv("ENV", "development")
	assert.Equal(t, "config/development.json", Path())

	t.Setenv("ENV", "production")
	assert.Equal(t, "config/production.json", Path())

	t.Setenv("ENV", "")
	assert.Equal(t, "settings.json", Path())
}

func TestValidate_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "1%", cfg.MetaTrader.Lot)
	assert.Equal(t, []int{25, 25, 25, 25}, cfg.MetaTrader.SaveProfits)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.CloseOnTrail())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad lot", func(c *Config) { c.MetaTrader.Lot = "free" }},
		{"negative lot", func(c *Config) { c.MetaTrader.Lot = "-0.1" }},
		{"save profit above 100", func(c *Config) { c.MetaTrader.SaveProfits = []int{120} }},
		{"negative closer price", func(c *Config) { c.MetaTrader.CloserPrice = -1 }},
		{"negative market distance", func(c *Config) { c.MetaTrader.MarketDistance = -1 }},
		{"negative expiry", func(c *Config) { c.MetaTrader.ExpirePendingMinutes = -5 }},
		{"negative account size", func(c *Config) { c.MetaTrader.AccountSize = -100 }},
		{"timer start without end", func(c *Config) { c.Timer.Start = "09:00" }},
		{"timer bad clock", func(c *Config) { c.Timer.Start = "25:00"; c.Timer.End = "10:00" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLotHelpers(t *testing.T) {
	cfg := &Config{}
	cfg.MetaTrader.Lot = "0.5"
	fixed, ok := cfg.FixedLot()
	require.True(t, ok)
	assert.Equal(t, 0.5, fixed)
	_, ok = cfg.RiskPercent()
	assert.False(t, ok)

	cfg.MetaTrader.Lot = "2.5%"
	pct, ok := cfg.RiskPercent()
	require.True(t, ok)
	assert.Equal(t, 2.5, pct)
	_, ok = cfg.FixedLot()
	assert.False(t, ok)
}

func TestIsWithinTradingHours(t *testing.T) {
	at := func(clock string) time.Time {
		ts, err := time.Parse("15:04", clock)
		require.NoError(t, err)
		return ts
	}

	var cfg Config
	assert.True(t, cfg.IsWithinTradingHours(at("03:00")), "no window configured")

	cfg.Timer = TimerConfig{Start: "09:30", End: "23:00"}
	assert.True(t, cfg.IsWithinTradingHours(at("09:30")))
	assert.True(t, cfg.IsWithinTradingHours(at("14:00")))
	assert.False(t, cfg.IsWithinTradingHours(at("23:00")))
	assert.False(t, cfg.IsWithinTradingHours(at("02:00")))

	cfg.Timer = TimerConfig{Start: "22:00", End: "02:00"}
	assert.True(t, cfg.IsWithinTradingHours(at("23:30")))
	assert.True(t, cfg.IsWithinTradingHours(at("01:59")))
	assert.False(t, cfg.IsWithinTradingHours(at("12:00")))
}

func TestChannelAndSymbolFilters(t *testing.T) {
	var cfg Config
	assert.True(t, cfg.ChannelAllowed("anything"), "no filters configured")

	cfg.Telegram.Channels = ChannelFilters{WhiteList: []string{"Gold VIP"}}
	assert.True(t, cfg.ChannelAllowed("gold vip"), "whitelist is case-insensitive")
	assert.False(t, cfg.ChannelAllowed("other channel"))

	cfg.Telegram.Channels = ChannelFilters{BlackList: []string{"spam"}}
	assert.False(t, cfg.ChannelAllowed("spam"))
	assert.True(t, cfg.ChannelAllowed("gold vip"))

	cfg.MetaTrader.Symbols = ChannelFilters{WhiteList: []string{"XAUUSD"}}
	assert.True(t, cfg.SymbolAllowed("xauusd"))
	assert.False(t, cfg.SymbolAllowed("BTCUSD"))
}
