package arbitrage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avelar-dev/solarb/internal/cache/memory"
	"github.com/avelar-dev/solarb/internal/domain"
)

// fakeQuoter serves fixed prices per venue and can be switched to failing.
type fakeQuoter struct {
	mu      sync.Mutex
	prices  map[string]float64 // venue -> price
	failing bool
	calls   int
}

func (q *fakeQuoter) Price(ctx context.Context, token, baseToken, venue string) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.failing {
		return 0, errors.New("quote service unavailable")
	}
	price, ok := q.prices[venue]
	if !ok {
		return 0, errors.New("unknown venue")
	}
	return price, nil
}

func (q *fakeQuoter) setFailing(failing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failing = failing
}

// swapCall records one leg handed to the fake executor.
type swapCall struct {
	From, To, Venue string
	Amount          float64
}

// fakeSwapper records legs and fails the venues listed in failVenues.
type fakeSwapper struct {
	mu         sync.Mutex
	calls      []swapCall
	failVenues map[string]bool
}

func (s *fakeSwapper) Swap(ctx context.Context, fromToken, toToken string, amount float64, venue string) (domain.SwapResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, swapCall{From: fromToken, To: toToken, Venue: venue, Amount: amount})
	if s.failVenues[venue] {
		return domain.SwapResult{}, errors.New("swap rejected")
	}
	return domain.SwapResult{Success: true, Signature: "sig_" + venue}, nil
}

func (s *fakeSwapper) recorded() []swapCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]swapCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func newTestScheduler(quoter *fakeQuoter, swapper *fakeSwapper) (*Scheduler, *memory.PriceCache) {
	cache := memory.NewPriceCache(testLogger())
	scanner := NewScanner(defaultScanConfig(), testLogger())
	validator := newTestValidator()
	cfg := SchedulerConfig{
		RefreshInterval: 5 * time.Second,
		ScanInterval:    10 * time.Second,
		CallTimeout:     time.Second,
		MinProfitPct:    0.1,
		TradeSize:       1.0,
		MaxLookupFails:  10,
	}
	sched := NewScheduler(cfg, testUniverse, cache, scanner, validator, quoter, swapper, testLogger())
	return sched, cache
}

func TestRefreshOnceFoldsQuotesIntoCache(t *testing.T) {
	quoter := &fakeQuoter{prices: map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
		"jupiter": 100.80,
	}}
	swapper := &fakeSwapper{}
	sched, cache := newTestScheduler(quoter, swapper)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched.RefreshOnce(context.Background(), now)

	if cache.Len() != 3 {
		t.Fatalf("cache entries = %d, want 3", cache.Len())
	}
	got, ok := cache.Get("SOL", "USDC", "orca")
	if !ok || got.Price != 101.50 {
		t.Fatalf("orca sample = %+v ok=%v, want price 101.50", got, ok)
	}
	if got.ObservedAt != now {
		t.Fatalf("ObservedAt = %v, want refresh time %v", got.ObservedAt, now)
	}
}

func TestRefreshOnceCountsConsecutiveFailures(t *testing.T) {
	quoter := &fakeQuoter{failing: true}
	swapper := &fakeSwapper{}
	sched, cache := newTestScheduler(quoter, swapper)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched.RefreshOnce(context.Background(), now)

	// One failure per (pair, venue) lookup: 1 pair x 3 venues.
	if fails := sched.LookupFailures(); fails != 3 {
		t.Fatalf("lookup failures = %d, want 3", fails)
	}
	if cache.Len() != 0 {
		t.Fatalf("failed lookups populated the cache: %d entries", cache.Len())
	}

	// A successful tick resets the counter.
	quoter.setFailing(false)
	quoter.mu.Lock()
	quoter.prices = map[string]float64{"raydium": 100, "orca": 101, "jupiter": 102}
	quoter.mu.Unlock()

	sched.RefreshOnce(context.Background(), now.Add(5*time.Second))
	if fails := sched.LookupFailures(); fails != 0 {
		t.Fatalf("lookup failures after recovery = %d, want 0", fails)
	}
}

func TestScanOnceExecutesBothLegs(t *testing.T) {
	quoter := &fakeQuoter{prices: map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	}}
	swapper := &fakeSwapper{}
	sched, _ := newTestScheduler(quoter, swapper)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched.RefreshOnce(context.Background(), now)
	sched.ScanOnce(context.Background(), now)

	calls := swapper.recorded()
	if len(calls) != 2 {
		t.Fatalf("swap calls = %d, want 2 (buy + sell)", len(calls))
	}
	buy, sell := calls[0], calls[1]
	if buy.Venue != "raydium" || buy.From != "USDC" || buy.To != "SOL" {
		t.Fatalf("buy leg = %+v, want USDC->SOL on raydium", buy)
	}
	if sell.Venue != "orca" || sell.From != "SOL" || sell.To != "USDC" {
		t.Fatalf("sell leg = %+v, want SOL->USDC on orca", sell)
	}
}

func TestScanOnceBuyFailureAbortsSellLeg(t *testing.T) {
	quoter := &fakeQuoter{prices: map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	}}
	swapper := &fakeSwapper{failVenues: map[string]bool{"raydium": true}}
	sched, _ := newTestScheduler(quoter, swapper)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched.RefreshOnce(context.Background(), now)
	sched.ScanOnce(context.Background(), now)

	calls := swapper.recorded()
	if len(calls) != 1 {
		t.Fatalf("swap calls = %d, want 1 (buy only, no sell after buy failure)", len(calls))
	}
	if calls[0].Venue != "raydium" {
		t.Fatalf("sole call venue = %s, want raydium", calls[0].Venue)
	}
}

func TestScanOnceSkipsDecayedOpportunity(t *testing.T) {
	quoter := &fakeQuoter{prices: map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	}}
	swapper := &fakeSwapper{}
	sched, cache := newTestScheduler(quoter, swapper)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched.RefreshOnce(context.Background(), now)

	// Spread collapses after discovery would have happened but before the
	// scan validates against live prices.
	if err := cache.Update(domain.PriceSample{
		Token: "SOL", BaseToken: "USDC", Venue: "orca",
		Price: 100.05, ObservedAt: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	sched.ScanOnce(context.Background(), now.Add(time.Second))

	if calls := swapper.recorded(); len(calls) != 0 {
		t.Fatalf("swap calls = %d, want 0 for decayed opportunity", len(calls))
	}
}

func TestScanOnceDryRunNeverTrades(t *testing.T) {
	quoter := &fakeQuoter{prices: map[string]float64{
		"raydium": 100.00,
		"orca":    101.50,
	}}
	swapper := &fakeSwapper{}
	sched, _ := newTestScheduler(quoter, swapper)
	sched.cfg.DryRun = true
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched.RefreshOnce(context.Background(), now)
	sched.ScanOnce(context.Background(), now)

	if calls := swapper.recorded(); len(calls) != 0 {
		t.Fatalf("swap calls = %d, want 0 in dry run", len(calls))
	}
}
