// Package config loads and validates the bot's JSON settings document.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Defaults applied by Validate when the settings document leaves a key unset.
const (
	// defaultLot sizes orders at one percent of account risk.
	defaultLot = "1%"
	// defaultCacheTTL bounds how long a cached store read may serve.
	defaultCacheTTL = 5 * time.Minute
)

// defaultSaveProfits is the fraction of the position closed at each
// take-profit level, in percent.
var defaultSaveProfits = []int{25, 25, 25, 25}

// Config represents the complete application configuration.
type Config struct {
	Telegram     TelegramConfig     `yaml:"Telegram"`
	Notification NotificationConfig `yaml:"Notification"`
	MetaTrader   MetaTraderConfig   `yaml:"MetaTrader"`
	Timer        TimerConfig        `yaml:"Timer"`
	DisableCache bool               `yaml:"disableCache"`
	LogLevel     string             `yaml:"logLevel"`
	StatusAddr   string             `yaml:"statusAddr"`
	DatabasePath string             `yaml:"databasePath"`
	SymbolsFile  string             `yaml:"symbolsFile"`
}

// TelegramConfig defines the chat-platform feed settings.
type TelegramConfig struct {
	APIID    int            `yaml:"api_id"`
	APIHash  string         `yaml:"api_hash"`
	Gateway  string         `yaml:"gateway"`
	Channels ChannelFilters `yaml:"channels"`
}

// ChannelFilters is an allow/deny pair. A non-empty whitelist wins; the
// blacklist applies afterwards.
type ChannelFilters struct {
	WhiteList []string `yaml:"whiteList"`
	BlackList []string `yaml:"blackList"`
}

// NotificationConfig defines the outbound Telegram notifier.
type NotificationConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chatId"`
}

// MetaTraderConfig defines the broker terminal session and order policy.
type MetaTraderConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
	Gateway  string `yaml:"gateway"`

	// Lot is either a fixed decimal ("0.1") or a risk percent ("1%").
	Lot string `yaml:"lot"`
	// HighRisk opens the second-entry leg when a signal carries one.
	HighRisk bool `yaml:"HighRisk"`
	// SaveProfits is the percent of the position closed at each TP level.
	SaveProfits []int `yaml:"SaveProfits"`
	// AccountSize overrides the live balance for risk sizing when set.
	AccountSize float64 `yaml:"AccountSize"`
	// CloserPrice nudges entries and TPs inward against slippage.
	CloserPrice float64 `yaml:"CloserPrice"`
	// MarketDistance is the window around the quote, in price units, inside
	// which a requested entry becomes a plain market order. Zero disables.
	MarketDistance float64 `yaml:"MarketDistance"`
	// ExpirePendingMinutes expires pending orders after N minutes of broker
	// server time. Zero keeps them good-till-cancelled.
	ExpirePendingMinutes int `yaml:"expirePendinOrderInMinutes"`
	// ClosePositionsOnTrail closes the whole position when a partial close
	// would fall under the broker's 0.01 minimum volume.
	ClosePositionsOnTrail *bool `yaml:"ClosePositionsOnTrail"`
	// StrictSymbols makes the parser drop messages naming no known symbol
	// instead of defaulting to gold.
	StrictSymbols bool `yaml:"StrictSymbols"`

	SymbolMappings map[string]string `yaml:"SymbolMappings"`
	Symbols        ChannelFilters    `yaml:"symbols"`
}

// TimerConfig bounds signal acceptance to a local time-of-day window.
// Empty strings disable the gate.
type TimerConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Path returns the settings file selected by the ENV environment variable:
// development and production map to config/<env>.json, anything else to
// ./settings.json.
func Path() string {
	switch os.Getenv("ENV") {
	case "development":
		return "config/development.json"
	case "production":
		return "config/production.json"
	default:
		return "settings.json"
	}
}

// Load reads and parses the settings document at configPath. An empty path
// selects per the ENV variable. JSON is a YAML subset, so the strict YAML
// decoder handles the document and rejects unknown keys.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = Path()
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate applies defaults and checks that all configuration values are
// valid and consistent. The config is immutable after this returns.
func (c *Config) Validate() error {
	if c.MetaTrader.Lot == "" {
		c.MetaTrader.Lot = defaultLot
	}
	if !strings.HasSuffix(c.MetaTrader.Lot, "%") {
		lot := strings.TrimSpace(c.MetaTrader.Lot)
		var v float64
		if _, err := fmt.Sscanf(lot, "%f", &v); err != nil || v <= 0 {
			return fmt.Errorf("MetaTrader.lot must be a positive decimal or a percent: %q", c.MetaTrader.Lot)
		}
	}

	if len(c.MetaTrader.SaveProfits) == 0 {
		c.MetaTrader.SaveProfits = append([]int(nil), defaultSaveProfits...)
	}
	for i, pct := range c.MetaTrader.SaveProfits {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("MetaTrader.SaveProfits[%d] must be within [0,100], got %d", i, pct)
		}
	}

	if c.MetaTrader.ClosePositionsOnTrail == nil {
		t := true
		c.MetaTrader.ClosePositionsOnTrail = &t
	}
	if c.MetaTrader.CloserPrice < 0 {
		return fmt.Errorf("MetaTrader.CloserPrice must be >= 0")
	}
	if c.MetaTrader.MarketDistance < 0 {
		return fmt.Errorf("MetaTrader.MarketDistance must be >= 0")
	}
	if c.MetaTrader.ExpirePendingMinutes < 0 {
		return fmt.Errorf("MetaTrader.expirePendinOrderInMinutes must be >= 0")
	}
	if c.MetaTrader.AccountSize < 0 {
		return fmt.Errorf("MetaTrader.AccountSize must be >= 0")
	}

	if (c.Timer.Start == "") != (c.Timer.End == "") {
		return fmt.Errorf("Timer.start and Timer.end must be set together")
	}
	if c.Timer.Start != "" {
		if _, err := time.Parse("15:04", c.Timer.Start); err != nil {
			return fmt.Errorf("Timer.start invalid: %w", err)
		}
		if _, err := time.Parse("15:04", c.Timer.End); err != nil {
			return fmt.Errorf("Timer.end invalid: %w", err)
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel must be one of debug|info|warn|error, got %q", c.LogLevel)
	}

	if c.DatabasePath == "" {
		c.DatabasePath = "signals.db"
	}
	if c.SymbolsFile == "" {
		c.SymbolsFile = "data/Symbols.json"
	}

	return nil
}

// CloseOnTrail reports whether a sub-minimum partial close should close the
// whole position instead.
func (c *Config) CloseOnTrail() bool {
	return c.MetaTrader.ClosePositionsOnTrail == nil || *c.MetaTrader.ClosePositionsOnTrail
}

// FixedLot returns the fixed lot size when the lot setting is a bare
// decimal; ok is false for percent specs.
func (c *Config) FixedLot() (float64, bool) {
	if strings.HasSuffix(c.MetaTrader.Lot, "%") {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(strings.TrimSpace(c.MetaTrader.Lot), "%f", &v); err != nil {
		return 0, false
	}
	return v, true
}

// RiskPercent returns the percent portion of the lot setting; ok is false
// for fixed-lot specs or unparsable percents.
func (c *Config) RiskPercent() (float64, bool) {
	if !strings.HasSuffix(c.MetaTrader.Lot, "%") {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimSpace(c.MetaTrader.Lot), "%"), "%f", &v); err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// CacheTTL returns how long cached store reads stay fresh.
func (c *Config) CacheTTL() time.Duration {
	return defaultCacheTTL
}

// IsWithinTradingHours checks if the given time falls inside the configured
// signal-acceptance window. With no window configured every time passes.
// Windows may cross midnight (start 22:00, end 02:00).
func (c *Config) IsWithinTradingHours(now time.Time) bool {
	if c.Timer.Start == "" || c.Timer.End == "" {
		return true
	}
	startClock, err1 := time.Parse("15:04", c.Timer.Start)
	endClock, err2 := time.Parse("15:04", c.Timer.End)
	if err1 != nil || err2 != nil {
		// Validate rejects these; an unvalidated config fails open.
		return true
	}

	minutes := now.Hour()*60 + now.Minute()
	start := startClock.Hour()*60 + startClock.Minute()
	end := endClock.Hour()*60 + endClock.Minute()

	if start <= end {
		return minutes >= start && minutes < end
	}
	// Window crosses midnight.
	return minutes >= start || minutes < end
}

// ChannelAllowed applies the channel whitelist/blacklist to a channel name
// or stringified chat id. A non-empty whitelist wins; otherwise anything not
// blacklisted passes.
func (c *Config) ChannelAllowed(name string) bool {
	return allowed(name, c.Telegram.Channels)
}

// SymbolAllowed applies the symbol whitelist/blacklist.
func (c *Config) SymbolAllowed(symbol string) bool {
	return allowed(symbol, c.MetaTrader.Symbols)
}

func allowed(name string, f ChannelFilters) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(f.WhiteList) > 0 {
		for _, w := range f.WhiteList {
			if strings.ToLower(strings.TrimSpace(w)) == name {
				return true
			}
		}
		return false
	}
	for _, b := range f.BlackList {
		if strings.ToLower(strings.TrimSpace(b)) == name {
			return false
		}
	}
	return true
}
