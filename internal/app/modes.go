package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/avelar-dev/solarb/internal/arbitrage"
	"github.com/avelar-dev/solarb/internal/bundle"
	"github.com/avelar-dev/solarb/internal/cache/memory"
	"github.com/avelar-dev/solarb/internal/domain"
	"github.com/avelar-dev/solarb/internal/feed"
	"github.com/avelar-dev/solarb/internal/mev"
	"github.com/avelar-dev/solarb/internal/pipeline"
)

// universe builds the watched pair universe from the configuration. Slice
// order is preserved; it drives pair enumeration and venue tie-breaks.
func (a *App) universe() domain.Universe {
	return domain.Universe{
		Tokens:     a.cfg.Universe.Tokens,
		BaseTokens: a.cfg.Universe.BaseTokens,
		Venues:     a.cfg.Universe.Venues,
	}
}

// buildArbScheduler assembles the price cache, scanner, validator, and
// scheduler, attaching whichever optional collaborators were wired.
func (a *App) buildArbScheduler(deps *Dependencies, dryRun bool) (*arbitrage.Scheduler, *memory.PriceCache) {
	cache := memory.NewPriceCache(a.logger)

	scanner := arbitrage.NewScanner(arbitrage.ScanConfig{
		MinSpreadPct: a.cfg.Arbitrage.MinSpreadPct,
		FeePct:       a.cfg.Arbitrage.FeePct,
		TopK:         a.cfg.Arbitrage.TopK,
		Freshness:    a.cfg.Arbitrage.Freshness.Duration,
	}, a.logger)

	// The allow-list covers both sides of every pair.
	tokens := make([]string, 0, len(a.cfg.Universe.Tokens)+len(a.cfg.Universe.BaseTokens))
	tokens = append(tokens, a.cfg.Universe.Tokens...)
	tokens = append(tokens, a.cfg.Universe.BaseTokens...)

	validator := arbitrage.NewValidator(
		a.cfg.Universe.Venues,
		tokens,
		a.cfg.Arbitrage.FeePct,
		a.cfg.Arbitrage.Freshness.Duration,
	)

	sched := arbitrage.NewScheduler(arbitrage.SchedulerConfig{
		RefreshInterval: a.cfg.Arbitrage.RefreshInterval.Duration,
		ScanInterval:    a.cfg.Arbitrage.ScanInterval.Duration,
		CallTimeout:     a.cfg.Arbitrage.CallTimeout.Duration,
		MinProfitPct:    a.cfg.Arbitrage.MinProfitPct,
		TradeSize:       a.cfg.Arbitrage.TradeSize,
		MaxLookupFails:  a.cfg.Arbitrage.MaxLookupFails,
		DryRun:          dryRun,
	}, a.universe(), cache, scanner, validator, deps.Quoter, deps.Swapper, a.logger)

	if deps.Mirror != nil {
		sched.SetMirror(deps.Mirror)
	}
	if deps.SignalBus != nil {
		sched.SetSignalBus(deps.SignalBus)
	}
	if deps.OpportunityStore != nil {
		sched.SetStore(deps.OpportunityStore)
	}
	sched.SetNotifier(deps.Notifier)

	return sched, cache
}

// buildBundlePipeline assembles the bundle scheduler, MEV detector, and the
// websocket transaction feed that drives them. The given cache supplies the
// cross-venue check.
func (a *App) buildBundlePipeline(deps *Dependencies, cache *memory.PriceCache) (*bundle.Scheduler, *feed.TxStreamFeed) {
	bundleSched := bundle.NewScheduler(bundle.SchedulerConfig{
		TTL:           a.cfg.Bundle.TTL.Duration,
		SweepInterval: a.cfg.Bundle.SweepInterval.Duration,
		SubmitTimeout: a.cfg.Bundle.SubmitTimeout.Duration,
		RelayLimit:    a.cfg.Bundle.RelayLimit,
		RelayWindow:   a.cfg.Bundle.RelayWindow.Duration,
	}, deps.Relay, a.logger)
	if deps.RateLimiter != nil {
		bundleSched.SetRateLimiter(deps.RateLimiter)
	}
	if deps.BundleStore != nil {
		bundleSched.SetStore(deps.BundleStore)
	}

	detector := mev.NewDetector(mev.DetectorConfig{
		LargeTradeBytes: a.cfg.MEV.LargeTradeBytes,
		ArbSpreadPct:    a.cfg.MEV.ArbSpreadPct,
		Freshness:       a.cfg.MEV.Freshness.Duration,
		Universe:        a.universe(),
	}, mev.DefaultPrograms(), cache, bundleSched, a.logger)

	txFeed := feed.NewTxStreamFeed(a.cfg.MEV.WsURL, detector.HandleTransaction, a.logger)

	return bundleSched, txFeed
}

// startArchiver adds the archival cron job to the group when the pipeline is
// enabled and both backing stores were wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Pipeline.Enabled || deps.Archiver == nil {
		return
	}
	archiver := pipeline.NewArchiver(
		deps.Archiver,
		deps.OpportunityStore,
		deps.BundleStore,
		a.cfg.Pipeline.ArchiveRetentionDays,
		a.logger,
	)
	cron := a.cfg.Pipeline.ArchiveCron
	g.Go(func() error {
		return archiver.RunCron(ctx, cron)
	})
}

// ArbitrageMode runs the price refresh and spread scan loops with live
// execution.
func (a *App) ArbitrageMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting arbitrage mode")

	g, ctx := errgroup.WithContext(ctx)

	sched, _ := a.buildArbScheduler(deps, false)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// MEVMode runs the transaction stream monitor, the bundle scheduler, and a
// refresh-only price loop to keep the cross-venue check supplied with fresh
// samples. No spread execution happens in this mode.
func (a *App) MEVMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting mev mode")

	g, ctx := errgroup.WithContext(ctx)

	sched, cache := a.buildArbScheduler(deps, true)
	g.Go(func() error {
		return sched.RunRefresh(ctx)
	})

	bundleSched, txFeed := a.buildBundlePipeline(deps, cache)
	g.Go(func() error {
		return bundleSched.Run(ctx)
	})
	g.Go(func() error {
		defer txFeed.Close()
		return txFeed.Run(ctx)
	})

	return g.Wait()
}

// MonitorMode runs the full detection pipeline but logs opportunities
// instead of trading them. With Redis enabled it also tails the opportunity
// channel, surfacing signals published by executing instances.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	sched, _ := a.buildArbScheduler(deps, true)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	if deps.SignalBus != nil {
		tail := arbitrage.NewSignalTail(deps.SignalBus, a.logger)
		g.Go(func() error {
			return tail.Run(ctx)
		})
	}

	return g.Wait()
}

// FullMode runs arbitrage execution and the MEV pipeline together, sharing
// one price cache, plus the archival job when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	sched, cache := a.buildArbScheduler(deps, false)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	if a.cfg.MEV.Enabled {
		bundleSched, txFeed := a.buildBundlePipeline(deps, cache)
		g.Go(func() error {
			return bundleSched.Run(ctx)
		})
		g.Go(func() error {
			defer txFeed.Close()
			return txFeed.Run(ctx)
		})
	}

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}
