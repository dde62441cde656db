// Package config defines the top-level configuration for the trading agent
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SOLARB_* environment variables.
type Config struct {
	Universe  UniverseConfig  `toml:"universe"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	MEV       MEVConfig       `toml:"mev"`
	Bundle    BundleConfig    `toml:"bundle"`
	Endpoints EndpointsConfig `toml:"endpoints"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// UniverseConfig enumerates the tokens, quote tokens, and venues the agent
// watches. Order matters: pair enumeration and venue tie-breaks follow the
// order given here.
type UniverseConfig struct {
	Tokens     []string `toml:"tokens"`
	BaseTokens []string `toml:"base_tokens"`
	Venues     []string `toml:"venues"`
}

// ArbitrageConfig holds spread scanning and execution parameters.
type ArbitrageConfig struct {
	MinSpreadPct    float64  `toml:"min_spread_pct"`
	FeePct          float64  `toml:"fee_pct"`
	MinProfitPct    float64  `toml:"min_profit_pct"`
	TopK            int      `toml:"top_k"`
	TradeSize       float64  `toml:"trade_size"`
	Freshness       duration `toml:"freshness"`
	RefreshInterval duration `toml:"refresh_interval"`
	ScanInterval    duration `toml:"scan_interval"`
	CallTimeout     duration `toml:"call_timeout"`
	MaxLookupFails  int      `toml:"max_lookup_fails"`
}

// MEVConfig holds transaction stream monitoring parameters.
type MEVConfig struct {
	Enabled         bool     `toml:"enabled"`
	WsURL           string   `toml:"ws_url"`
	LargeTradeBytes int      `toml:"large_trade_bytes"`
	ArbSpreadPct    float64  `toml:"arb_spread_pct"`
	Freshness       duration `toml:"freshness"`
}

// BundleConfig holds bundle lifecycle parameters.
type BundleConfig struct {
	TTL           duration `toml:"ttl"`
	SweepInterval duration `toml:"sweep_interval"`
	SubmitTimeout duration `toml:"submit_timeout"`
	RelayLimit    int      `toml:"relay_limit"`
	RelayWindow   duration `toml:"relay_window"`
}

// EndpointsConfig holds the external service URLs the agent talks to.
type EndpointsConfig struct {
	QuoteURL   string `toml:"quote_url"`
	SwapURL    string `toml:"swap_url"`
	SwapAPIKey string `toml:"swap_api_key"`
	RelayURL   string `toml:"relay_url"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds archival job parameters.
type PipelineConfig struct {
	Enabled              bool   `toml:"enabled"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	ArchiveCron          string `toml:"archive_cron"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "10m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Universe: UniverseConfig{
			Tokens:     []string{"SOL", "RAY", "ORCA"},
			BaseTokens: []string{"USDC"},
			Venues:     []string{"raydium", "orca", "jupiter"},
		},
		Arbitrage: ArbitrageConfig{
			MinSpreadPct:    0.3,
			FeePct:          0.2,
			MinProfitPct:    0.1,
			TopK:            5,
			TradeSize:       1.0,
			Freshness:       duration{10 * time.Second},
			RefreshInterval: duration{5 * time.Second},
			ScanInterval:    duration{10 * time.Second},
			CallTimeout:     duration{4 * time.Second},
			MaxLookupFails:  10,
		},
		MEV: MEVConfig{
			Enabled:         false,
			WsURL:           "wss://localhost:8900/txstream",
			LargeTradeBytes: 16,
			ArbSpreadPct:    0.3,
			Freshness:       duration{10 * time.Second},
		},
		Bundle: BundleConfig{
			TTL:           duration{30 * time.Second},
			SweepInterval: duration{5 * time.Second},
			SubmitTimeout: duration{5 * time.Second},
			RelayLimit:    10,
			RelayWindow:   duration{time.Second},
		},
		Endpoints: EndpointsConfig{
			QuoteURL: "https://quote-api.jup.ag",
			SwapURL:  "http://localhost:8080",
			RelayURL: "https://mainnet.block-engine.jito.wtf",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "solarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "solarb-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			Enabled:              false,
			ArchiveRetentionDays: 90,
			ArchiveCron:          "0 3 1 * *",
		},
		Notify: NotifyConfig{
			Events: []string{"execution", "leg_failure", "bundle", "price_alert"},
		},
		Mode:     "arbitrage",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"arbitrage": true,
	"mev":       true,
	"monitor":   true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: arbitrage, mev, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Universe
	if len(c.Universe.Tokens) == 0 {
		errs = append(errs, "universe: tokens must not be empty")
	}
	if len(c.Universe.BaseTokens) == 0 {
		errs = append(errs, "universe: base_tokens must not be empty")
	}
	if len(c.Universe.Venues) < 2 {
		errs = append(errs, "universe: at least two venues are required for spread scanning")
	}

	// Arbitrage
	if c.Arbitrage.MinSpreadPct <= 0 {
		errs = append(errs, "arbitrage: min_spread_pct must be > 0")
	}
	if c.Arbitrage.FeePct < 0 {
		errs = append(errs, "arbitrage: fee_pct must be >= 0")
	}
	if c.Arbitrage.TopK < 1 {
		errs = append(errs, "arbitrage: top_k must be >= 1")
	}
	if c.Arbitrage.TradeSize <= 0 {
		errs = append(errs, "arbitrage: trade_size must be > 0")
	}
	if c.Arbitrage.Freshness.Duration <= 0 {
		errs = append(errs, "arbitrage: freshness must be > 0")
	}
	if c.Arbitrage.RefreshInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: refresh_interval must be > 0")
	}
	if c.Arbitrage.ScanInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: scan_interval must be > 0")
	}
	if c.Arbitrage.MaxLookupFails < 1 {
		errs = append(errs, "arbitrage: max_lookup_fails must be >= 1")
	}

	// MEV
	if c.MEV.Enabled || c.Mode == "mev" {
		if c.MEV.WsURL == "" {
			errs = append(errs, "mev: ws_url is required when mev is enabled")
		}
		if c.MEV.LargeTradeBytes < 1 {
			errs = append(errs, "mev: large_trade_bytes must be >= 1")
		}
	}

	// Bundle
	if c.Bundle.TTL.Duration <= 0 {
		errs = append(errs, "bundle: ttl must be > 0")
	}
	if c.Bundle.SweepInterval.Duration <= 0 {
		errs = append(errs, "bundle: sweep_interval must be > 0")
	}

	// Endpoints
	if c.Endpoints.QuoteURL == "" {
		errs = append(errs, "endpoints: quote_url must not be empty")
	}
	if c.Mode == "arbitrage" || c.Mode == "full" {
		if c.Endpoints.SwapURL == "" {
			errs = append(errs, "endpoints: swap_url is required for mode "+c.Mode)
		}
	}
	if c.Mode == "mev" || c.Mode == "full" {
		if c.Endpoints.RelayURL == "" {
			errs = append(errs, "endpoints: relay_url is required for mode "+c.Mode)
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Pipeline depends on both stores being available.
	if c.Pipeline.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "pipeline: postgres must be enabled for archival")
		}
		if !c.S3.Enabled {
			errs = append(errs, "pipeline: s3 must be enabled for archival")
		}
		if c.Pipeline.ArchiveRetentionDays < 1 {
			errs = append(errs, "pipeline: archive_retention_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
