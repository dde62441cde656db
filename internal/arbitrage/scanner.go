// Package arbitrage contains the cross-venue opportunity detection pipeline:
// the spread scanner, the pre-trade validator, and the scheduler that drives
// price refresh and scan cycles.
package arbitrage

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/avelar-dev/solarb/internal/cache/memory"
	"github.com/avelar-dev/solarb/internal/domain"
)

// ScanConfig holds the scanner thresholds.
type ScanConfig struct {
	// MinSpreadPct is the minimum cross-venue spread, in percent, for a pair
	// to be emitted as an opportunity.
	MinSpreadPct float64
	// FeePct is the fixed fee estimate, in percentage points, subtracted from
	// the spread to produce the estimated profit.
	FeePct float64
	// TopK bounds the number of opportunities emitted per scan.
	TopK int
	// Freshness is the maximum sample age considered usable.
	Freshness time.Duration
}

// Scanner enumerates every watched pair in a price snapshot and ranks the
// cross-venue discrepancies it finds.
type Scanner struct {
	cfg    ScanConfig
	logger *slog.Logger
}

// NewScanner creates a Scanner with the given thresholds.
func NewScanner(cfg ScanConfig, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "spread_scanner")),
	}
}

// Scan walks every (token, baseToken) pair in the universe, collects the
// fresh samples across venues, and emits an opportunity when the cheapest and
// most expensive venue differ by more than the configured spread. Results are
// sorted by spread descending and truncated to TopK. Ties for the cheapest or
// most expensive venue resolve to the first venue in configuration order.
func (s *Scanner) Scan(snap memory.Snapshot, universe domain.Universe, now time.Time) []domain.Opportunity {
	var opportunities []domain.Opportunity

	for _, pair := range universe.Pairs() {
		samples := snap.FreshOnVenues(pair.Token, pair.BaseToken, universe.Venues, now, s.cfg.Freshness)
		if len(samples) < 2 {
			continue
		}

		buy := samples[0]
		sell := samples[0]
		for _, sample := range samples[1:] {
			if sample.Price < buy.Price {
				buy = sample
			}
			if sample.Price > sell.Price {
				sell = sample
			}
		}
		if buy.Venue == sell.Venue {
			continue
		}

		spread := domain.Spread(buy.Price, sell.Price)
		if spread <= s.cfg.MinSpreadPct {
			continue
		}

		opportunities = append(opportunities, domain.Opportunity{
			ID:           uuid.New().String(),
			Token:        pair.Token,
			BaseToken:    pair.BaseToken,
			BuyVenue:     buy.Venue,
			SellVenue:    sell.Venue,
			BuyPrice:     buy.Price,
			SellPrice:    sell.Price,
			SpreadPct:    spread,
			EstProfitPct: spread - s.cfg.FeePct,
			DetectedAt:   now,
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].SpreadPct > opportunities[j].SpreadPct
	})
	if s.cfg.TopK > 0 && len(opportunities) > s.cfg.TopK {
		opportunities = opportunities[:s.cfg.TopK]
	}

	if len(opportunities) > 0 {
		best := opportunities[0]
		s.logger.Debug("scan complete",
			slog.Int("opportunities", len(opportunities)),
			slog.String("best_pair", best.Token+"/"+best.BaseToken),
			slog.Float64("best_spread_pct", best.SpreadPct),
		)
	}
	return opportunities
}
