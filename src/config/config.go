package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config carries all service settings. Load applies the defaults first,
// then the YAML file, then environment overrides.
type Config struct {
	Server struct {
		Addr            string `yaml:"addr"`
		ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
		MaxInFlight     int64  `yaml:"max_in_flight"` // 0 disables load shedding
	} `yaml:"server"`

	Market struct {
		Symbols            []string        `yaml:"symbols"`
		SnapshotDepth      int             `yaml:"snapshot_depth"`
		MaxDepth           int             `yaml:"max_depth"`
		AffordabilityCheck bool            `yaml:"affordability_check"`
		DefaultBalance     decimal.Decimal `yaml:"default_balance"`
	} `yaml:"market"`

	Feed struct {
		Provider    string `yaml:"provider"` // "synthetic" or "finnhub"
		IntervalSec int    `yaml:"interval_sec"`
		FinnhubKey  string `yaml:"finnhub_key"`
	} `yaml:"feed"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	RateLimit struct {
		Disabled  bool `yaml:"disabled"`
		Max       int  `yaml:"max"`
		WindowSec int  `yaml:"window_sec"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownTimeout = 10
	cfg.Server.MaxInFlight = 512
	cfg.Market.Symbols = []string{"AAPL", "MSFT"}
	cfg.Market.SnapshotDepth = 10
	cfg.Market.MaxDepth = 1000
	cfg.Market.DefaultBalance = decimal.NewFromInt(10000)
	cfg.Feed.Provider = "synthetic"
	cfg.Feed.IntervalSec = 60
	cfg.Store.Path = "data/exchange.db"
	cfg.RateLimit.Max = 100
	cfg.RateLimit.WindowSec = 1
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the YAML file at path into the defaults. A missing file is
// not an error: defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if max := os.Getenv("MAX_IN_FLIGHT"); max != "" {
		if parsed, err := strconv.ParseInt(max, 10, 64); err == nil && parsed >= 0 {
			cfg.Server.MaxInFlight = parsed
		}
	}
	if key := os.Getenv("FINNHUB_KEY"); key != "" {
		cfg.Feed.FinnhubKey = key
	}
	if provider := os.Getenv("FEED_PROVIDER"); provider != "" {
		cfg.Feed.Provider = provider
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}
	if disabled := os.Getenv("RATE_LIMIT_DISABLED"); disabled == "1" {
		cfg.RateLimit.Disabled = true
	}
	if max := os.Getenv("RATE_LIMIT_MAX"); max != "" {
		if parsed, err := strconv.Atoi(max); err == nil && parsed > 0 {
			cfg.RateLimit.Max = parsed
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("at least one tradable symbol is required")
	}
	if c.Market.SnapshotDepth <= 0 {
		return fmt.Errorf("snapshot depth must be positive")
	}
	if c.Market.MaxDepth < c.Market.SnapshotDepth {
		return fmt.Errorf("max depth must be >= snapshot depth")
	}
	if !c.Market.DefaultBalance.IsPositive() {
		return fmt.Errorf("default balance must be positive")
	}
	switch c.Feed.Provider {
	case "synthetic":
	case "finnhub":
		if c.Feed.FinnhubKey == "" {
			return fmt.Errorf("finnhub provider requires an API key")
		}
	default:
		return fmt.Errorf("unknown feed provider %q", c.Feed.Provider)
	}
	if c.Feed.IntervalSec <= 0 {
		return fmt.Errorf("feed interval must be positive")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	return nil
}
