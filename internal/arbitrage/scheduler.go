package arbitrage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelar-dev/solarb/internal/cache/memory"
	"github.com/avelar-dev/solarb/internal/domain"
	"github.com/avelar-dev/solarb/internal/notify"
)

// SchedulerConfig holds timing and execution parameters for the scheduler.
type SchedulerConfig struct {
	RefreshInterval time.Duration // price refresh cadence
	ScanInterval    time.Duration // spread scan cadence
	CallTimeout     time.Duration // per external call
	MinProfitPct    float64       // required net profit at validation time
	TradeSize       float64       // fixed size per leg, in base token units
	MaxLookupFails  int           // consecutive-failure ceiling before warning
	// DryRun logs validated opportunities instead of executing them.
	DryRun bool
}

// Scheduler drives the two periodic arbitrage loops: a refresh loop that
// fans out price lookups and folds them into the cache, and a scan loop that
// detects, validates, and executes opportunities. The two loops never block
// each other; each external call carries its own timeout.
type Scheduler struct {
	cfg       SchedulerConfig
	universe  domain.Universe
	cache     *memory.PriceCache
	scanner   *Scanner
	validator *Validator
	quoter    domain.PriceQuoter
	swapper   domain.SwapExecutor

	// Optional collaborators; nil disables the corresponding side effect.
	mirror   domain.PriceMirror
	bus      domain.SignalBus
	store    domain.OpportunityStore
	notifier *notify.Notifier

	lookupFails atomic.Int64
	logger      *slog.Logger
}

// NewScheduler wires a Scheduler from its collaborators. mirror, bus, store,
// and notifier may be nil.
func NewScheduler(
	cfg SchedulerConfig,
	universe domain.Universe,
	cache *memory.PriceCache,
	scanner *Scanner,
	validator *Validator,
	quoter domain.PriceQuoter,
	swapper domain.SwapExecutor,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		universe:  universe,
		cache:     cache,
		scanner:   scanner,
		validator: validator,
		quoter:    quoter,
		swapper:   swapper,
		logger:    logger.With(slog.String("component", "arb_scheduler")),
	}
}

// SetMirror attaches a price mirror that receives every folded sample.
func (s *Scheduler) SetMirror(m domain.PriceMirror) { s.mirror = m }

// SetSignalBus attaches a bus on which validated opportunities are published.
func (s *Scheduler) SetSignalBus(b domain.SignalBus) { s.bus = b }

// SetStore attaches a store that records executed opportunities.
func (s *Scheduler) SetStore(st domain.OpportunityStore) { s.store = st }

// SetNotifier attaches an operator notification sink.
func (s *Scheduler) SetNotifier(n *notify.Notifier) { s.notifier = n }

// Run starts both loops and blocks until ctx is cancelled. Errors inside a
// tick are logged and absorbed; only context cancellation ends the loops.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("arbitrage scheduler started",
		slog.Duration("refresh_interval", s.cfg.RefreshInterval),
		slog.Duration("scan_interval", s.cfg.ScanInterval),
	)
	defer s.logger.Info("arbitrage scheduler stopped")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runRefreshLoop(ctx) })
	g.Go(func() error { return s.runScanLoop(ctx) })
	return g.Wait()
}

// RunRefresh starts only the refresh loop. Used when another component
// consumes the cache but no spreads should be executed from it.
func (s *Scheduler) RunRefresh(ctx context.Context) error {
	s.logger.Info("price refresh loop started",
		slog.Duration("refresh_interval", s.cfg.RefreshInterval),
	)
	defer s.logger.Info("price refresh loop stopped")
	return s.runRefreshLoop(ctx)
}

func (s *Scheduler) runRefreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RefreshOnce(ctx, time.Now())
		}
	}
}

func (s *Scheduler) runScanLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.ScanOnce(ctx, time.Now())
		}
	}
}

// RefreshOnce issues one concurrent price lookup per (token, baseToken,
// venue) combination, joins them, and folds successful results into the
// cache. Tick latency is bounded by the slowest single lookup, not the sum.
// Consecutive lookup failures are counted across ticks; crossing the ceiling
// logs a warning as advisory backpressure, it does not open a breaker.
func (s *Scheduler) RefreshOnce(ctx context.Context, now time.Time) {
	g, gctx := errgroup.WithContext(ctx)

	for _, pair := range s.universe.Pairs() {
		for _, venue := range s.universe.Venues {
			pair, venue := pair, venue
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, s.cfg.CallTimeout)
				defer cancel()

				price, err := s.quoter.Price(callCtx, pair.Token, pair.BaseToken, venue)
				if err != nil {
					fails := s.lookupFails.Add(1)
					if fails == int64(s.cfg.MaxLookupFails)+1 {
						s.logger.Warn("price lookup failure ceiling crossed",
							slog.Int64("consecutive_failures", fails),
						)
					}
					s.logger.Debug("price lookup failed",
						slog.String("token", pair.Token),
						slog.String("venue", venue),
						slog.String("error", err.Error()),
					)
					return nil
				}
				s.lookupFails.Store(0)

				sample := domain.PriceSample{
					Token:      pair.Token,
					BaseToken:  pair.BaseToken,
					Venue:      venue,
					Price:      price,
					ObservedAt: now,
				}
				if err := s.cache.Update(sample); err != nil {
					s.logger.Warn("price sample rejected",
						slog.String("token", pair.Token),
						slog.String("venue", venue),
						slog.Float64("price", price),
						slog.String("error", err.Error()),
					)
					return nil
				}
				if s.mirror != nil {
					if err := s.mirror.Publish(gctx, sample); err != nil {
						s.logger.Debug("price mirror publish failed",
							slog.String("error", err.Error()),
						)
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// ScanOnce runs one detection cycle: snapshot, scan, then per opportunity in
// rank order validate and execute. A failing leg aborts its opportunity but
// never the cycle.
func (s *Scheduler) ScanOnce(ctx context.Context, now time.Time) {
	snap := s.cache.Snapshot()
	opportunities := s.scanner.Scan(snap, s.universe, now)

	for _, opp := range opportunities {
		if !s.validator.StillProfitable(opp, s.cache, now, s.cfg.MinProfitPct) {
			s.logger.Debug("opportunity decayed before execution",
				slog.String("opp_id", opp.ID),
				slog.String("pair", opp.Token+"/"+opp.BaseToken),
			)
			continue
		}
		if !s.validator.Eligible(opp) {
			s.logger.Debug("opportunity not on allow-list",
				slog.String("opp_id", opp.ID),
			)
			continue
		}

		s.publish(ctx, opp)

		if s.cfg.DryRun {
			s.logger.Info("opportunity detected",
				slog.String("opp_id", opp.ID),
				slog.String("pair", opp.Token+"/"+opp.BaseToken),
				slog.String("buy_venue", opp.BuyVenue),
				slog.String("sell_venue", opp.SellVenue),
				slog.Float64("spread_pct", opp.SpreadPct),
				slog.Float64("est_profit_pct", opp.EstProfitPct),
			)
			continue
		}

		if err := s.execute(ctx, opp); err != nil {
			s.logger.Error("arbitrage execution failed",
				slog.String("opp_id", opp.ID),
				slog.String("pair", opp.Token+"/"+opp.BaseToken),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.record(ctx, opp)
	}
}

// execute performs the two-leg trade: buy on the cheap venue, then sell on
// the expensive one. A buy failure aborts the pair without touching the sell
// leg. A sell failure after a successful buy leaves an open position; there
// is no automatic unwind, so it is logged at error level and pushed to the
// notifier for an operator to hedge manually.
func (s *Scheduler) execute(ctx context.Context, opp domain.Opportunity) error {
	buyCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	buyRes, err := s.swapper.Swap(buyCtx, opp.BaseToken, opp.Token, s.cfg.TradeSize, opp.BuyVenue)
	cancel()
	if err != nil {
		return fmt.Errorf("buy leg on %s: %w", opp.BuyVenue, err)
	}
	if !buyRes.Success {
		return fmt.Errorf("buy leg on %s rejected", opp.BuyVenue)
	}

	sellCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	sellRes, err := s.swapper.Swap(sellCtx, opp.Token, opp.BaseToken, s.cfg.TradeSize, opp.SellVenue)
	cancel()
	if err != nil || !sellRes.Success {
		detail := "rejected"
		if err != nil {
			detail = err.Error()
		}
		s.logger.Error("sell leg failed after successful buy, position open",
			slog.String("opp_id", opp.ID),
			slog.String("token", opp.Token),
			slog.String("sell_venue", opp.SellVenue),
			slog.Float64("size", s.cfg.TradeSize),
			slog.String("detail", detail),
		)
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, notify.EventLegFailure, "Unhedged position",
				fmt.Sprintf("sell leg failed for %s/%s on %s (size %.4f): %s",
					opp.Token, opp.BaseToken, opp.SellVenue, s.cfg.TradeSize, detail))
		}
		return fmt.Errorf("sell leg on %s: %s", opp.SellVenue, detail)
	}

	s.logger.Info("arbitrage executed",
		slog.String("opp_id", opp.ID),
		slog.String("pair", opp.Token+"/"+opp.BaseToken),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.Float64("spread_pct", opp.SpreadPct),
		slog.String("buy_sig", buyRes.Signature),
		slog.String("sell_sig", sellRes.Signature),
	)
	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, notify.EventExecution, "Arbitrage executed",
			fmt.Sprintf("%s/%s buy %s @ %.4f, sell %s @ %.4f, spread %.2f%%",
				opp.Token, opp.BaseToken, opp.BuyVenue, opp.BuyPrice,
				opp.SellVenue, opp.SellPrice, opp.SpreadPct))
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, opp domain.Opportunity) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(opp)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, opportunityChannel, payload); err != nil {
		s.logger.Debug("opportunity publish failed", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) record(ctx context.Context, opp domain.Opportunity) {
	if s.store == nil {
		return
	}
	if err := s.store.Create(ctx, opp); err != nil {
		s.logger.Warn("opportunity record failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}

// LookupFailures returns the current consecutive price-lookup failure count.
func (s *Scheduler) LookupFailures() int64 {
	return s.lookupFails.Load()
}
