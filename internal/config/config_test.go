package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("err = %v, want unknown mode", err)
	}
}

func TestValidateRequiresTwoVenues(t *testing.T) {
	cfg := Defaults()
	cfg.Universe.Venues = []string{"raydium"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "two venues") {
		t.Fatalf("err = %v, want two-venue requirement", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Arbitrage.MinSpreadPct = 0
	cfg.Arbitrage.TradeSize = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "min_spread_pct", "trade_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error missing %q: %v", want, err)
		}
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "monitor"

[arbitrage]
min_spread_pct = 0.5
refresh_interval = "2s"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "monitor" {
		t.Fatalf("mode = %q, want monitor", cfg.Mode)
	}
	if cfg.Arbitrage.MinSpreadPct != 0.5 {
		t.Fatalf("min_spread_pct = %v, want 0.5", cfg.Arbitrage.MinSpreadPct)
	}
	if cfg.Arbitrage.RefreshInterval.Duration != 2*time.Second {
		t.Fatalf("refresh_interval = %v, want 2s", cfg.Arbitrage.RefreshInterval.Duration)
	}
	// Untouched values keep their defaults.
	if cfg.Arbitrage.TopK != 5 {
		t.Fatalf("top_k = %d, want default 5", cfg.Arbitrage.TopK)
	}
	if cfg.Bundle.TTL.Duration != 30*time.Second {
		t.Fatalf("bundle ttl = %v, want default 30s", cfg.Bundle.TTL.Duration)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`mode = "monitor"`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SOLARB_MODE", "arbitrage")
	t.Setenv("SOLARB_ARBITRAGE_TRADE_SIZE", "2.5")
	t.Setenv("SOLARB_UNIVERSE_VENUES", "raydium, orca")
	t.Setenv("SOLARB_BUNDLE_TTL", "45s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "arbitrage" {
		t.Fatalf("mode = %q, want arbitrage", cfg.Mode)
	}
	if cfg.Arbitrage.TradeSize != 2.5 {
		t.Fatalf("trade_size = %v, want 2.5", cfg.Arbitrage.TradeSize)
	}
	if len(cfg.Universe.Venues) != 2 || cfg.Universe.Venues[1] != "orca" {
		t.Fatalf("venues = %v, want [raydium orca]", cfg.Universe.Venues)
	}
	if cfg.Bundle.TTL.Duration != 45*time.Second {
		t.Fatalf("bundle ttl = %v, want 45s", cfg.Bundle.TTL.Duration)
	}
}
