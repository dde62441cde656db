// Package pipeline runs periodic maintenance jobs around the trading core.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/avelar-dev/solarb/internal/blob/s3"
	"github.com/avelar-dev/solarb/internal/domain"
)

// Archiver moves old opportunities and bundle outcomes from the database to
// S3 cold storage, then prunes the archived rows. Pruning happens only after
// the corresponding upload succeeds, so a failed archive run never loses
// data.
type Archiver struct {
	blob          *s3blob.Archiver
	opportunities domain.OpportunityStore
	bundles       domain.BundleStore
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(
	blob *s3blob.Archiver,
	opportunities domain.OpportunityStore,
	bundles domain.BundleStore,
	retentionDays int,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		blob:          blob,
		opportunities: opportunities,
		bundles:       bundles,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive-then-prune cycle. The cutoff is derived from
// the retention window; anything older is uploaded and then deleted.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	oppCount, err := a.blob.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving opportunities before %v: %w", cutoff, err)
	}
	if oppCount > 0 {
		pruned, err := a.opportunities.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning opportunities before %v: %w", cutoff, err)
		}
		a.logger.Info("archived opportunities",
			slog.Int64("archived", oppCount),
			slog.Int64("pruned", pruned),
		)
	}

	bundleCount, err := a.blob.ArchiveBundleOutcomes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving bundle outcomes before %v: %w", cutoff, err)
	}
	if bundleCount > 0 {
		pruned, err := a.bundles.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning bundle outcomes before %v: %w", cutoff, err)
		}
		a.logger.Info("archived bundle outcomes",
			slog.Int64("archived", bundleCount),
			slog.Int64("pruned", pruned),
		)
	}

	a.logger.Info("archive run complete",
		slog.Int64("opportunities_archived", oppCount),
		slog.Int64("bundles_archived", bundleCount),
	)

	return nil
}

// RunCron runs the archiver on a cron schedule until the context is
// cancelled. It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week".
//
// Example: "0 3 1 * *" runs at 3:00 AM on the 1st of every month.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
