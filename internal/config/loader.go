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
// built-in defaults, applies SOLARB_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SOLARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Universe ──
	setStringSlice(&cfg.Universe.Tokens, "SOLARB_UNIVERSE_TOKENS")
	setStringSlice(&cfg.Universe.BaseTokens, "SOLARB_UNIVERSE_BASE_TOKENS")
	setStringSlice(&cfg.Universe.Venues, "SOLARB_UNIVERSE_VENUES")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinSpreadPct, "SOLARB_ARBITRAGE_MIN_SPREAD_PCT")
	setFloat64(&cfg.Arbitrage.FeePct, "SOLARB_ARBITRAGE_FEE_PCT")
	setFloat64(&cfg.Arbitrage.MinProfitPct, "SOLARB_ARBITRAGE_MIN_PROFIT_PCT")
	setInt(&cfg.Arbitrage.TopK, "SOLARB_ARBITRAGE_TOP_K")
	setFloat64(&cfg.Arbitrage.TradeSize, "SOLARB_ARBITRAGE_TRADE_SIZE")
	setDuration(&cfg.Arbitrage.Freshness, "SOLARB_ARBITRAGE_FRESHNESS")
	setDuration(&cfg.Arbitrage.RefreshInterval, "SOLARB_ARBITRAGE_REFRESH_INTERVAL")
	setDuration(&cfg.Arbitrage.ScanInterval, "SOLARB_ARBITRAGE_SCAN_INTERVAL")
	setDuration(&cfg.Arbitrage.CallTimeout, "SOLARB_ARBITRAGE_CALL_TIMEOUT")
	setInt(&cfg.Arbitrage.MaxLookupFails, "SOLARB_ARBITRAGE_MAX_LOOKUP_FAILS")

	// ── MEV ──
	setBool(&cfg.MEV.Enabled, "SOLARB_MEV_ENABLED")
	setStr(&cfg.MEV.WsURL, "SOLARB_MEV_WS_URL")
	setInt(&cfg.MEV.LargeTradeBytes, "SOLARB_MEV_LARGE_TRADE_BYTES")
	setFloat64(&cfg.MEV.ArbSpreadPct, "SOLARB_MEV_ARB_SPREAD_PCT")
	setDuration(&cfg.MEV.Freshness, "SOLARB_MEV_FRESHNESS")

	// ── Bundle ──
	setDuration(&cfg.Bundle.TTL, "SOLARB_BUNDLE_TTL")
	setDuration(&cfg.Bundle.SweepInterval, "SOLARB_BUNDLE_SWEEP_INTERVAL")
	setDuration(&cfg.Bundle.SubmitTimeout, "SOLARB_BUNDLE_SUBMIT_TIMEOUT")
	setInt(&cfg.Bundle.RelayLimit, "SOLARB_BUNDLE_RELAY_LIMIT")
	setDuration(&cfg.Bundle.RelayWindow, "SOLARB_BUNDLE_RELAY_WINDOW")

	// ── Endpoints ──
	setStr(&cfg.Endpoints.QuoteURL, "SOLARB_ENDPOINTS_QUOTE_URL")
	setStr(&cfg.Endpoints.SwapURL, "SOLARB_ENDPOINTS_SWAP_URL")
	setStr(&cfg.Endpoints.SwapAPIKey, "SOLARB_ENDPOINTS_SWAP_API_KEY")
	setStr(&cfg.Endpoints.RelayURL, "SOLARB_ENDPOINTS_RELAY_URL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SOLARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SOLARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SOLARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOLARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOLARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOLARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOLARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOLARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SOLARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SOLARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SOLARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SOLARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SOLARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SOLARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SOLARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SOLARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SOLARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SOLARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "SOLARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SOLARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SOLARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SOLARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SOLARB_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "SOLARB_PIPELINE_ENABLED")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "SOLARB_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "SOLARB_PIPELINE_ARCHIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOLARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOLARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOLARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOLARB_MODE")
	setStr(&cfg.LogLevel, "SOLARB_LOG_LEVEL")
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
