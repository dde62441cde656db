// Package mev classifies transactions from the live stream and synthesizes
// bundles for the ones worth acting on.
package mev

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/avelar-dev/solarb/internal/bundle"
	"github.com/avelar-dev/solarb/internal/cache/memory"
	"github.com/avelar-dev/solarb/internal/domain"
)

// DetectorConfig holds the classification thresholds.
type DetectorConfig struct {
	// LargeTradeBytes is the instruction payload length above which a trade
	// is considered large enough to sandwich.
	LargeTradeBytes int
	// ArbSpreadPct is the minimum cross-venue spread, read from the price
	// cache, that turns an observed exchange transaction into an arbitrage
	// bundle.
	ArbSpreadPct float64
	// Freshness bounds the age of cache samples used for the arbitrage check.
	Freshness time.Duration
	// Universe supplies the pairs and venues consulted for the arbitrage
	// check.
	Universe domain.Universe
}

// Detector consumes the transaction stream, matches instructions against the
// exchange program allow-list, and inserts sandwich or arbitrage bundles into
// the bundle scheduler. It is the sole producer for the bundle table.
type Detector struct {
	cfg      DetectorConfig
	programs map[solana.PublicKey]struct{}
	cache    *memory.PriceCache
	bundles  *bundle.Scheduler
	logger   *slog.Logger
}

// NewDetector creates a Detector watching the given exchange programs.
func NewDetector(cfg DetectorConfig, programs []solana.PublicKey, cache *memory.PriceCache, bundles *bundle.Scheduler, logger *slog.Logger) *Detector {
	allow := make(map[solana.PublicKey]struct{}, len(programs))
	for _, p := range programs {
		allow[p] = struct{}{}
	}
	return &Detector{
		cfg:      cfg,
		programs: allow,
		cache:    cache,
		bundles:  bundles,
		logger:   logger.With(slog.String("component", "mev_detector")),
	}
}

// HandleTransaction classifies one streamed transaction. Malformed records
// are logged and skipped; the stream goes on with the next record.
func (d *Detector) HandleTransaction(ctx context.Context, rec domain.TxRecord) {
	if rec.Signature == "" || len(rec.Instructions) == 0 {
		d.logger.Debug("skipping malformed transaction record",
			slog.String("signature", rec.Signature),
			slog.Uint64("slot", rec.Slot),
		)
		return
	}

	for _, inst := range rec.Instructions {
		if _, ok := d.programs[inst.ProgramID]; !ok {
			continue
		}

		if d.detectLargeTrade(inst) {
			d.queueSandwich(rec, inst)
		}
		if opp, ok := d.detectArbitrage(time.Now()); ok {
			d.queueArbitrage(rec, opp)
		}
	}
}

// detectLargeTrade flags instructions whose payload exceeds the configured
// byte threshold. A long swap payload usually means a routed multi-hop or a
// size worth bracketing.
func (d *Detector) detectLargeTrade(inst domain.Instruction) bool {
	return len(inst.Data) > d.cfg.LargeTradeBytes
}

// detectArbitrage looks for a live cross-venue discrepancy in the price
// cache. The observed transaction is only the trigger to look; the signal
// itself comes from cached quotes, never from chance.
func (d *Detector) detectArbitrage(now time.Time) (domain.Opportunity, bool) {
	snap := d.cache.Snapshot()
	for _, pair := range d.cfg.Universe.Pairs() {
		samples := snap.FreshOnVenues(pair.Token, pair.BaseToken, d.cfg.Universe.Venues, now, d.cfg.Freshness)
		if len(samples) < 2 {
			continue
		}
		buy, sell := samples[0], samples[0]
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
		if spread <= d.cfg.ArbSpreadPct {
			continue
		}
		return domain.Opportunity{
			Token:      pair.Token,
			BaseToken:  pair.BaseToken,
			BuyVenue:   buy.Venue,
			SellVenue:  sell.Venue,
			BuyPrice:   buy.Price,
			SellPrice:  sell.Price,
			SpreadPct:  spread,
			DetectedAt: now,
		}, true
	}
	return domain.Opportunity{}, false
}

// queueSandwich synthesizes a three-transaction bundle bracketing the
// observed trade and hands it to the scheduler.
func (d *Detector) queueSandwich(rec domain.TxRecord, inst domain.Instruction) {
	venue := VenueForProgram(inst.ProgramID)
	b := domain.Bundle{
		ID:        fmt.Sprintf("sandwich_%s", uuid.New().String()),
		Kind:      domain.BundleKindSandwich,
		CreatedAt: time.Now(),
		Transactions: []domain.TxDescriptor{
			{Role: domain.TxRoleFrontRun, Program: inst.ProgramID, Venue: venue},
			{Role: domain.TxRoleTarget, Program: inst.ProgramID, Venue: venue, Payload: inst.Data},
			{Role: domain.TxRoleBackRun, Program: inst.ProgramID, Venue: venue},
		},
	}
	if err := d.bundles.Insert(b); err != nil {
		d.logger.Warn("sandwich bundle insert failed",
			slog.String("bundle_id", b.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Info("large trade detected, sandwich bundle queued",
		slog.String("bundle_id", b.ID),
		slog.String("signature", rec.Signature),
		slog.String("venue", venue),
		slog.Int("payload_bytes", len(inst.Data)),
	)
}

// queueArbitrage synthesizes a two-leg bundle for the discrepancy found in
// the cache.
func (d *Detector) queueArbitrage(rec domain.TxRecord, opp domain.Opportunity) {
	buyProgram := programForVenue(opp.BuyVenue)
	sellProgram := programForVenue(opp.SellVenue)
	b := domain.Bundle{
		ID:        fmt.Sprintf("arb_%s", uuid.New().String()),
		Kind:      domain.BundleKindArbitrage,
		CreatedAt: time.Now(),
		Transactions: []domain.TxDescriptor{
			{Role: domain.TxRoleSwapLeg, Program: buyProgram, Venue: opp.BuyVenue},
			{Role: domain.TxRoleSwapLeg, Program: sellProgram, Venue: opp.SellVenue},
		},
	}
	if err := d.bundles.Insert(b); err != nil {
		d.logger.Warn("arbitrage bundle insert failed",
			slog.String("bundle_id", b.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Info("cross-venue discrepancy detected, arbitrage bundle queued",
		slog.String("bundle_id", b.ID),
		slog.String("trigger_signature", rec.Signature),
		slog.String("pair", opp.Token+"/"+opp.BaseToken),
		slog.Float64("spread_pct", opp.SpreadPct),
	)
}

// programForVenue is the inverse of VenueForProgram for the venues the
// detector knows how to trade.
func programForVenue(venue string) solana.PublicKey {
	switch venue {
	case "raydium":
		return RaydiumAMMV4
	case "orca":
		return OrcaWhirlpool
	default:
		return solana.PublicKey{}
	}
}
