// Package config exposes strongly typed application configuration structs loaded from YAML,
// with a .env file and EMABOT_* environment variables layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment and logging level.
type App struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// MetricsAddr is the standalone metrics listener used by cmd/paper.
	MetricsAddr string `yaml:"metrics_addr"`
}

// HTTP holds the listener and request limits of the API server.
type HTTP struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
}

// Addr renders the listen address in host:port form.
func (h HTTP) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Strategy selects the signal rule and its EMA spans.
type Strategy struct {
	Mode      string `yaml:"mode"`
	ShortSpan int    `yaml:"short_span"`
	LongSpan  int    `yaml:"long_span"`
}

// Paper captures paper-trading account settings.
type Paper struct {
	StartingCash float64 `yaml:"starting_cash"`
	JournalPath  string  `yaml:"journal_path"`
	// Timezone applies to series timestamps that carry no zone, e.g. "US/Eastern".
	Timezone string `yaml:"timezone"`
}

// Storage picks the trade record backend: sqlite, postgres or memory.
type Storage struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Redis configures the optional trade list cache. Empty Addr disables it.
type Redis struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// RabbitMQ configures the optional record publisher. Empty URL disables it.
type RabbitMQ struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Feed configures the price poller.
type Feed struct {
	Provider     string `yaml:"provider"`
	Symbol       string `yaml:"symbol"`
	Interval     string `yaml:"interval"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	PollInterval int    `yaml:"poll_interval_ms"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Strategy Strategy `yaml:"strategy"`
	Paper    Paper    `yaml:"paper"`
	Storage  Storage  `yaml:"storage"`
	Redis    Redis    `yaml:"redis"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	Feed     Feed     `yaml:"feed"`
}

// Default returns the settings used when no file overrides them.
func Default() *Config {
	return &Config{
		App:      App{Name: "emabot", Env: "development", LogLevel: "info", MetricsAddr: ":9100"},
		HTTP:     HTTP{Host: "0.0.0.0", Port: 3300, AllowOrigins: []string{"*"}, MaxBodyBytes: 4 << 20},
		Strategy: Strategy{Mode: "ema_crossover", ShortSpan: 12, LongSpan: 26},
		Paper:    Paper{StartingCash: 10000, Timezone: "UTC"},
		Storage:  Storage{Driver: "sqlite", DSN: "trades.db"},
		Redis:    Redis{CacheTTLSeconds: 30},
		RabbitMQ: RabbitMQ{Exchange: "emabot.decisions"},
		Feed: Feed{
			Provider:     "none",
			Interval:     "1min",
			BaseURL:      "https://www.alphavantage.co",
			PollInterval: 60000,
		},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// LoadWithEnv loads .env (best-effort), the YAML file when path is non-empty and
// present, then applies environment overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	if c.Strategy.ShortSpan <= 0 || c.Strategy.LongSpan <= 0 {
		return fmt.Errorf("ema spans must be positive, got %d/%d", c.Strategy.ShortSpan, c.Strategy.LongSpan)
	}
	if c.Paper.StartingCash < 0 {
		return fmt.Errorf("starting cash must not be negative, got %.2f", c.Paper.StartingCash)
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if strings.EqualFold(c.Feed.Provider, "alphavantage") && c.Feed.Symbol == "" {
		return errors.New("alphavantage feed requires a symbol")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.App.LogLevel = getString("EMABOT_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Env = getString("EMABOT_ENV", cfg.App.Env)
	cfg.HTTP.Host = getString("EMABOT_HTTP_HOST", cfg.HTTP.Host)
	port, err := getInt("EMABOT_HTTP_PORT", cfg.HTTP.Port)
	if err != nil {
		return err
	}
	cfg.HTTP.Port = port
	cash, err := getFloat("EMABOT_STARTING_CASH", cfg.Paper.StartingCash)
	if err != nil {
		return err
	}
	cfg.Paper.StartingCash = cash
	cfg.Strategy.Mode = getString("EMABOT_STRATEGY_MODE", cfg.Strategy.Mode)
	cfg.Storage.Driver = getString("EMABOT_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getString("EMABOT_STORAGE_DSN", cfg.Storage.DSN)
	cfg.Redis.Addr = getString("EMABOT_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getString("EMABOT_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.RabbitMQ.URL = getString("EMABOT_RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.Feed.Provider = getString("EMABOT_FEED_PROVIDER", cfg.Feed.Provider)
	cfg.Feed.Symbol = getString("EMABOT_FEED_SYMBOL", cfg.Feed.Symbol)
	cfg.Feed.APIKey = getString("ALPHAVANTAGE_API_KEY", cfg.Feed.APIKey)
	return nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to float: %w", key, value, err)
	}
	return parsed, nil
}
