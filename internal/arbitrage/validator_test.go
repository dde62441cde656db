package arbitrage

import (
	"testing"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

func newTestValidator() *Validator {
	return NewValidator(
		[]string{"raydium", "orca", "jupiter"},
		[]string{"SOL", "USDC"},
		0.2,
		10*time.Second,
	)
}

func detectedOpp(now time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:         "opp-1",
		Token:      "SOL",
		BaseToken:  "USDC",
		BuyVenue:   "raydium",
		SellVenue:  "orca",
		BuyPrice:   100.00,
		SellPrice:  101.50,
		SpreadPct:  1.5,
		DetectedAt: now,
	}
}

func TestStillProfitableFromLivePrices(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := fillCache(t, now, map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	})
	v := newTestValidator()

	if !v.StillProfitable(detectedOpp(now), cache, now, 0.1) {
		t.Fatal("1.5%% spread minus 0.2%% fee should clear 0.1%% requirement")
	}
}

func TestStillProfitableIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := fillCache(t, now, map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	})
	v := newTestValidator()
	opp := detectedOpp(now)

	first := v.StillProfitable(opp, cache, now, 0.1)
	second := v.StillProfitable(opp, cache, now, 0.1)
	if first != second {
		t.Fatalf("validation not idempotent: first=%v second=%v", first, second)
	}
}

func TestStillProfitableRejectsDecayedSpread(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := fillCache(t, now, map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	})
	v := newTestValidator()
	opp := detectedOpp(now)

	// The sell venue collapses to near parity before execution.
	if err := cache.Update(domain.PriceSample{
		Token: "SOL", BaseToken: "USDC", Venue: "orca",
		Price: 100.05, ObservedAt: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if v.StillProfitable(opp, cache, now.Add(time.Second), 0.1) {
		t.Fatal("decayed spread should fail validation")
	}
}

func TestStillProfitableRejectsMissingEntry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := fillCache(t, now, map[string]float64{
		"raydium": 100.00,
		// No orca entry at all.
	})
	v := newTestValidator()

	if v.StillProfitable(detectedOpp(now), cache, now, 0.1) {
		t.Fatal("missing sell-side entry should fail validation")
	}
}

func TestStillProfitableRejectsStaleEntry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := fillCache(t, now.Add(-time.Minute), map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	})
	v := newTestValidator()

	if v.StillProfitable(detectedOpp(now), cache, now, 0.1) {
		t.Fatal("stale entries should fail validation")
	}
}

func TestEligibleEnforcesAllowLists(t *testing.T) {
	v := newTestValidator()
	now := time.Now()

	good := detectedOpp(now)
	if !v.Eligible(good) {
		t.Fatal("allow-listed opportunity should be eligible")
	}

	badVenue := good
	badVenue.SellVenue = "serum"
	if v.Eligible(badVenue) {
		t.Fatal("unknown venue should not be eligible")
	}

	badToken := good
	badToken.Token = "BONK"
	if v.Eligible(badToken) {
		t.Fatal("unknown token should not be eligible")
	}
}
