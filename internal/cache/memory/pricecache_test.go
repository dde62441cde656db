package memory

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sample(venue string, price float64, at time.Time) domain.PriceSample {
	return domain.PriceSample{
		Token:      "SOL",
		BaseToken:  "USDC",
		Venue:      venue,
		Price:      price,
		ObservedAt: at,
	}
}

func TestUpdateKeepsPreviousSample(t *testing.T) {
	cache := NewPriceCache(testLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := cache.Update(sample("raydium", 100.0, base)); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := cache.Update(sample("raydium", 101.5, base.Add(5*time.Second))); err != nil {
		t.Fatalf("second update: %v", err)
	}

	cur, ok := cache.Get("SOL", "USDC", "raydium")
	if !ok {
		t.Fatal("current sample missing")
	}
	if cur.Price != 101.5 {
		t.Fatalf("current price = %v, want 101.5", cur.Price)
	}

	prev, ok := cache.Previous("SOL", "USDC", "raydium")
	if !ok {
		t.Fatal("previous sample missing")
	}
	if prev.Price != 100.0 {
		t.Fatalf("previous price = %v, want 100.0", prev.Price)
	}
}

func TestUpdateRejectsNonPositivePrice(t *testing.T) {
	cache := NewPriceCache(testLogger())
	now := time.Now()

	for _, price := range []float64{0, -3.5} {
		err := cache.Update(sample("orca", price, now))
		if !errors.Is(err, domain.ErrInvalidPrice) {
			t.Fatalf("price %v: err = %v, want ErrInvalidPrice", price, err)
		}
	}
	if cache.Len() != 0 {
		t.Fatalf("cache should stay empty, has %d entries", cache.Len())
	}
}

func TestUpdateRejectsOutOfOrderSample(t *testing.T) {
	cache := NewPriceCache(testLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := cache.Update(sample("orca", 100.0, base)); err != nil {
		t.Fatalf("update: %v", err)
	}
	err := cache.Update(sample("orca", 99.0, base.Add(-time.Second)))
	if !errors.Is(err, domain.ErrStalePrice) {
		t.Fatalf("err = %v, want ErrStalePrice", err)
	}

	cur, _ := cache.Get("SOL", "USDC", "orca")
	if cur.Price != 100.0 {
		t.Fatalf("stale sample overwrote current: price = %v", cur.Price)
	}
}

func TestUpdateAcceptsEqualTimestamp(t *testing.T) {
	cache := NewPriceCache(testLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := cache.Update(sample("orca", 100.0, base)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := cache.Update(sample("orca", 100.2, base)); err != nil {
		t.Fatalf("equal-timestamp update rejected: %v", err)
	}
	cur, _ := cache.Get("SOL", "USDC", "orca")
	if cur.Price != 100.2 {
		t.Fatalf("price = %v, want 100.2", cur.Price)
	}
}

func TestSnapshotIsolatedFromLaterUpdates(t *testing.T) {
	cache := NewPriceCache(testLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := cache.Update(sample("raydium", 100.0, base)); err != nil {
		t.Fatalf("update: %v", err)
	}

	snap := cache.Snapshot()

	if err := cache.Update(sample("raydium", 150.0, base.Add(time.Second))); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok := snap.Get("SOL", "USDC", "raydium")
	if !ok {
		t.Fatal("snapshot entry missing")
	}
	if got.Price != 100.0 {
		t.Fatalf("snapshot price = %v, want 100.0 (pre-update)", got.Price)
	}
}

func TestFreshOnVenuesSkipsStaleAndAbsent(t *testing.T) {
	cache := NewPriceCache(testLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := cache.Update(sample("raydium", 100.0, base)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := cache.Update(sample("orca", 101.0, base.Add(-30*time.Second))); err != nil {
		t.Fatalf("update: %v", err)
	}

	snap := cache.Snapshot()
	now := base.Add(5 * time.Second)
	fresh := snap.FreshOnVenues("SOL", "USDC", []string{"raydium", "orca", "jupiter"}, now, 10*time.Second)

	if len(fresh) != 1 {
		t.Fatalf("fresh samples = %d, want 1", len(fresh))
	}
	if fresh[0].Venue != "raydium" {
		t.Fatalf("fresh venue = %s, want raydium", fresh[0].Venue)
	}
}
