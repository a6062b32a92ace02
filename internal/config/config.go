// Package config loads dashboard settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codyseavey/crypto-tracker/internal/models"
)

const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

type Config struct {
	Server struct {
		Port               string   `yaml:"port"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		FrontendDistPath   string   `yaml:"frontend_dist_path"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Storage struct {
		Backend string `yaml:"backend"` // "sqlite" or "redis"
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	CoinGecko struct {
		BaseURL           string `yaml:"base_url"`
		APIKey            string `yaml:"api_key"`
		TimeoutSec        int    `yaml:"timeout_sec"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	} `yaml:"coingecko"`

	Chart struct {
		PollIntervalMS int    `yaml:"poll_interval_ms"`
		WindowCap      int    `yaml:"window_cap"`
		DefaultRange   string `yaml:"default_range"`
		MaxSessions    int    `yaml:"max_sessions"`
	} `yaml:"chart"`

	Markets struct {
		Currency           string `yaml:"currency"`
		PageSize           int    `yaml:"page_size"`
		RefreshIntervalSec int    `yaml:"refresh_interval_sec"`
	} `yaml:"markets"`

	Search struct {
		DebounceMS int `yaml:"debounce_ms"`
	} `yaml:"search"`
}

// Default returns the built-in settings.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	cfg.Database.Path = "./crypto_tracker.db"
	cfg.Storage.Backend = StorageSQLite
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Prefix = "crypto_tracker:"
	cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	cfg.CoinGecko.TimeoutSec = 10
	cfg.CoinGecko.RequestsPerMinute = 30
	cfg.Chart.PollIntervalMS = 15000
	cfg.Chart.WindowCap = 240
	cfg.Chart.DefaultRange = models.Range1D.Label
	cfg.Chart.MaxSessions = 64
	cfg.Markets.Currency = "usd"
	cfg.Markets.PageSize = 80
	cfg.Markets.RefreshIntervalSec = 60
	cfg.Search.DebounceMS = 350
	return &cfg
}

// Load reads the YAML file at path on top of the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	var errs []error

	if c.Chart.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("chart poll interval must be positive"))
	}
	if c.Chart.WindowCap < 1 {
		errs = append(errs, errors.New("chart window cap must be at least 1"))
	}
	if c.Chart.MaxSessions < 1 {
		errs = append(errs, errors.New("chart max sessions must be at least 1"))
	}
	if _, err := models.ParseTimeRange(c.Chart.DefaultRange); err != nil {
		errs = append(errs, err)
	}
	if c.Markets.PageSize < 1 || c.Markets.PageSize > 250 {
		errs = append(errs, fmt.Errorf("markets page size must be between 1 and 250, got %d", c.Markets.PageSize))
	}
	if c.Markets.Currency == "" {
		errs = append(errs, errors.New("markets currency is required"))
	}
	if c.CoinGecko.BaseURL == "" {
		errs = append(errs, errors.New("coingecko base url is required"))
	}
	if c.CoinGecko.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("coingecko requests per minute must be positive"))
	}
	switch c.Storage.Backend {
	case StorageSQLite, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	return errors.Join(errs...)
}

// overrideWithEnv replaces file values with environment variables when set.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSAllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("FRONTEND_DIST_PATH"); v != "" {
		cfg.Server.FrontendDistPath = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	setInt(&cfg.Redis.DB, "REDIS_DB")
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.CoinGecko.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
	setInt(&cfg.CoinGecko.RequestsPerMinute, "COINGECKO_REQUESTS_PER_MINUTE")
	setInt(&cfg.Chart.PollIntervalMS, "CHART_POLL_INTERVAL_MS")
	setInt(&cfg.Chart.WindowCap, "CHART_WINDOW_CAP")
	setInt(&cfg.Markets.PageSize, "MARKETS_PAGE_SIZE")
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Chart.PollIntervalMS) * time.Millisecond
}

func (c *Config) CoinGeckoTimeout() time.Duration {
	return time.Duration(c.CoinGecko.TimeoutSec) * time.Second
}

func (c *Config) MarketRefreshInterval() time.Duration {
	return time.Duration(c.Markets.RefreshIntervalSec) * time.Second
}

func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Search.DebounceMS) * time.Millisecond
}

// DefaultRange returns the parsed default chart range. Validate guarantees
// it parses.
func (c *Config) DefaultRange() models.TimeRange {
	r, err := models.ParseTimeRange(c.Chart.DefaultRange)
	if err != nil {
		return models.Range1D
	}
	return r
}
