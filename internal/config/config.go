// Package config defines the top-level configuration for the futures bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FUTURESBOT_* environment
// variables.
type Config struct {
	Exchange  ExchangeConfig  `toml:"exchange"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Risk      RiskConfig      `toml:"risk"`
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Archive   ArchiveConfig   `toml:"archive"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ExchangeConfig holds Binance futures API credentials and endpoints.
type ExchangeConfig struct {
	ApiKey    string `toml:"api_key"`
	SecretKey string `toml:"secret_key"`
	StreamURL string `toml:"stream_url"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the trade
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RiskConfig holds the pre-trade limits and protective-level parameters.
type RiskConfig struct {
	MaxDailyLoss    float64 `toml:"max_daily_loss"`
	MaxPositionSize float64 `toml:"max_position_size"`
	MarginRate      float64 `toml:"margin_rate"`
	StopLossPct     float64 `toml:"stop_loss_pct"`
	TakeProfitPct   float64 `toml:"take_profit_pct"`
	Volatility      float64 `toml:"volatility"`
	// Overshoot selects what a reducing fill larger than the open position
	// does with the excess: "flip" or "close".
	Overshoot string `toml:"overshoot"`
}

// EngineConfig holds the control-loop and strategy parameters.
type EngineConfig struct {
	Symbols       []string `toml:"symbols"`
	OrderQuantity float64  `toml:"order_quantity"`
	Timeframe     string   `toml:"timeframe"`
	FastWindow    int      `toml:"fast_window"`
	SlowWindow    int      `toml:"slow_window"`
	SlippageBps   float64  `toml:"slippage_bps"`
	ScanInterval  duration `toml:"scan_interval"`
	EvalInterval  duration `toml:"eval_interval"`
	PollInterval  duration `toml:"poll_interval"`
	MaxBackoff    duration `toml:"max_backoff"`
}

// SchedulerConfig holds the daily-reset schedule.
type SchedulerConfig struct {
	ResetTime string `toml:"reset_time"` // "HH:MM"
	Timezone  string `toml:"timezone"`
}

// ArchiveConfig holds the trade archiver parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials and event filters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration to support "30s"-style TOML values.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			StreamURL: "wss://fstream.binance.com/stream",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "futuresbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "futuresbot-data",
			ForcePathStyle: true,
		},
		Risk: RiskConfig{
			MaxDailyLoss:    500,
			MaxPositionSize: 10,
			MarginRate:      0.10,
			StopLossPct:     2,
			TakeProfitPct:   4,
			Volatility:      0.02,
			Overshoot:       "flip",
		},
		Engine: EngineConfig{
			Symbols:       []string{"BTCUSDT"},
			OrderQuantity: 0.01,
			Timeframe:     "1m",
			FastWindow:    9,
			SlowWindow:    21,
			SlippageBps:   5,
			ScanInterval:  duration{5 * time.Second},
			EvalInterval:  duration{time.Minute},
			PollInterval:  duration{time.Minute},
			MaxBackoff:    duration{2 * time.Minute},
		},
		Scheduler: SchedulerConfig{
			ResetTime: "09:30",
			Timezone:  "UTC",
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Interval:      duration{24 * time.Hour},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":   true,
	"paper":   true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper, monitor)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange credentials are only needed for live trading.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Exchange.ApiKey == "" || c.Exchange.SecretKey == "" {
			errs = append(errs, "exchange: api_key and secret_key are required for mode trade")
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Risk
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}
	if c.Risk.MaxPositionSize <= 0 {
		errs = append(errs, "risk: max_position_size must be > 0")
	}
	if c.Risk.MarginRate <= 0 || c.Risk.MarginRate > 1 {
		errs = append(errs, fmt.Sprintf("risk: margin_rate must be in (0, 1], got %v", c.Risk.MarginRate))
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 100 {
		errs = append(errs, fmt.Sprintf("risk: stop_loss_pct must be in (0, 100), got %v", c.Risk.StopLossPct))
	}
	if c.Risk.TakeProfitPct <= 0 {
		errs = append(errs, "risk: take_profit_pct must be > 0")
	}
	if o := strings.ToLower(c.Risk.Overshoot); o != "flip" && o != "close" {
		errs = append(errs, fmt.Sprintf("risk: overshoot must be flip or close, got %q", c.Risk.Overshoot))
	}

	// Engine
	if len(c.Engine.Symbols) == 0 {
		errs = append(errs, "engine: symbols must not be empty")
	}
	if c.Engine.OrderQuantity <= 0 {
		errs = append(errs, "engine: order_quantity must be > 0")
	}
	if c.Engine.Timeframe == "" {
		errs = append(errs, "engine: timeframe must not be empty")
	}
	if c.Engine.FastWindow <= 0 || c.Engine.SlowWindow <= 0 || c.Engine.FastWindow >= c.Engine.SlowWindow {
		errs = append(errs, fmt.Sprintf("engine: windows must satisfy 0 < fast < slow, got %d/%d",
			c.Engine.FastWindow, c.Engine.SlowWindow))
	}

	// Scheduler
	if _, err := time.Parse("15:04", c.Scheduler.ResetTime); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler: reset_time must be HH:MM, got %q", c.Scheduler.ResetTime))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler: unknown timezone %q", c.Scheduler.Timezone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
