package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FUTURESBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FUTURESBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.ApiKey, "FUTURESBOT_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.SecretKey, "FUTURESBOT_EXCHANGE_SECRET_KEY")
	setStr(&cfg.Exchange.StreamURL, "FUTURESBOT_EXCHANGE_STREAM_URL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "FUTURESBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "FUTURESBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "FUTURESBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "FUTURESBOT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "FUTURESBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "FUTURESBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "FUTURESBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "FUTURESBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "FUTURESBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "FUTURESBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FUTURESBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FUTURESBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FUTURESBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FUTURESBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FUTURESBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FUTURESBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FUTURESBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FUTURESBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "FUTURESBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FUTURESBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FUTURESBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FUTURESBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FUTURESBOT_S3_FORCE_PATH_STYLE")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxDailyLoss, "FUTURESBOT_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxPositionSize, "FUTURESBOT_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.MarginRate, "FUTURESBOT_RISK_MARGIN_RATE")
	setFloat64(&cfg.Risk.StopLossPct, "FUTURESBOT_RISK_STOP_LOSS_PCT")
	setFloat64(&cfg.Risk.TakeProfitPct, "FUTURESBOT_RISK_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Risk.Volatility, "FUTURESBOT_RISK_VOLATILITY")
	setStr(&cfg.Risk.Overshoot, "FUTURESBOT_RISK_OVERSHOOT")

	// ── Engine ──
	setStringSlice(&cfg.Engine.Symbols, "FUTURESBOT_ENGINE_SYMBOLS")
	setFloat64(&cfg.Engine.OrderQuantity, "FUTURESBOT_ENGINE_ORDER_QUANTITY")
	setStr(&cfg.Engine.Timeframe, "FUTURESBOT_ENGINE_TIMEFRAME")
	setInt(&cfg.Engine.FastWindow, "FUTURESBOT_ENGINE_FAST_WINDOW")
	setInt(&cfg.Engine.SlowWindow, "FUTURESBOT_ENGINE_SLOW_WINDOW")
	setFloat64(&cfg.Engine.SlippageBps, "FUTURESBOT_ENGINE_SLIPPAGE_BPS")
	setDuration(&cfg.Engine.ScanInterval, "FUTURESBOT_ENGINE_SCAN_INTERVAL")
	setDuration(&cfg.Engine.EvalInterval, "FUTURESBOT_ENGINE_EVAL_INTERVAL")
	setDuration(&cfg.Engine.PollInterval, "FUTURESBOT_ENGINE_POLL_INTERVAL")
	setDuration(&cfg.Engine.MaxBackoff, "FUTURESBOT_ENGINE_MAX_BACKOFF")

	// ── Scheduler ──
	setStr(&cfg.Scheduler.ResetTime, "FUTURESBOT_SCHEDULER_RESET_TIME")
	setStr(&cfg.Scheduler.Timezone, "FUTURESBOT_SCHEDULER_TIMEZONE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FUTURESBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FUTURESBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FUTURESBOT_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FUTURESBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FUTURESBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FUTURESBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FUTURESBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FUTURESBOT_MODE")
	setStr(&cfg.LogLevel, "FUTURESBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
