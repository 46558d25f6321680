package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// VenueConfig holds venue connection settings. The API token is NOT part
// of the file config: it is read from the GOTRADE_API_TOKEN environment
// variable only, kept in memory for the session lifetime and never
// written anywhere.
type VenueConfig struct {
	Endpoint string `yaml:"endpoint"`
	AppID    string `yaml:"app_id"`
	Currency string `yaml:"currency"`
}

// TicketConfig holds order-ticket defaults.
type TicketConfig struct {
	DebounceMS       int    `yaml:"debounce_ms"`
	ProfitTableLimit int    `yaml:"profit_table_limit"`
	DefaultStake     string `yaml:"default_stake"`
	DefaultDuration  int    `yaml:"default_duration"`
	DefaultDurUnit   string `yaml:"default_duration_unit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// JournalConfig holds the local trade journal settings.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Config is the application configuration.
type Config struct {
	Venue   VenueConfig   `yaml:"venue"`
	Ticket  TicketConfig  `yaml:"ticket"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Venue: VenueConfig{
			Endpoint: "wss://ws.derivws.com/websockets/v3",
			AppID:    "1089",
			Currency: "USD",
		},
		Ticket: TicketConfig{
			DebounceMS:       300,
			ProfitTableLimit: 50,
			DefaultStake:     "10",
			DefaultDuration:  5,
			DefaultDurUnit:   "t",
		},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/gotrade.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Journal: JournalConfig{
			Path: "data/journal.db",
		},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults,
// then applies GOTRADE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIToken returns the venue API token from the environment. Empty means
// not configured; the caller decides whether that is fatal.
func APIToken() string {
	return strings.TrimSpace(os.Getenv("GOTRADE_API_TOKEN"))
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOTRADE_ENDPOINT"); v != "" {
		cfg.Venue.Endpoint = v
	}
	if v := os.Getenv("GOTRADE_APP_ID"); v != "" {
		cfg.Venue.AppID = v
	}
	if v := os.Getenv("GOTRADE_CURRENCY"); v != "" {
		cfg.Venue.Currency = v
	}
	if v := os.Getenv("GOTRADE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GOTRADE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("GOTRADE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("GOTRADE_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Ticket.DebounceMS = n
		}
	}
	if v := os.Getenv("GOTRADE_PROFIT_TABLE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Ticket.ProfitTableLimit = n
		}
	}
}

// Validate checks the loaded configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Venue.Endpoint == "" {
		return fmt.Errorf("venue.endpoint must not be empty")
	}
	if !strings.HasPrefix(c.Venue.Endpoint, "ws://") && !strings.HasPrefix(c.Venue.Endpoint, "wss://") {
		return fmt.Errorf("venue.endpoint must be a ws:// or wss:// URL, got %q", c.Venue.Endpoint)
	}
	if c.Venue.Currency == "" {
		return fmt.Errorf("venue.currency must not be empty")
	}
	if c.Ticket.DebounceMS < 0 {
		return fmt.Errorf("ticket.debounce_ms must not be negative")
	}
	if c.Ticket.ProfitTableLimit <= 0 {
		return fmt.Errorf("ticket.profit_table_limit must be positive")
	}
	return nil
}
