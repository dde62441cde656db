// Package bundle owns the table of in-flight MEV bundles and the sweep loop
// that expires or submits them.
package bundle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

// relayLimitKey is the shared rate-limiter bucket for relay submissions.
const relayLimitKey = "relay:submit"

// SchedulerConfig holds the sweep parameters.
type SchedulerConfig struct {
	TTL           time.Duration // max age before a pending bundle expires
	SweepInterval time.Duration // sweep cadence
	SubmitTimeout time.Duration // per relay call
	// RelayLimit bounds submissions per RelayWindow when a rate limiter is
	// attached; zero disables limiting.
	RelayLimit  int
	RelayWindow time.Duration
}

// Scheduler holds pending bundles keyed by bundle ID and sweeps them on a
// fixed timer. Producers insert; the sweep loop is the only mutator of status
// and the only remover. All three terminal states (submitted, expired,
// failed) drop the bundle from the table; a failed bundle is never retried
// under the same ID.
type Scheduler struct {
	cfg   SchedulerConfig
	relay domain.BundleRelay

	limiter domain.RateLimiter // optional
	store   domain.BundleStore // optional

	mu    sync.Mutex
	table map[string]domain.Bundle

	logger *slog.Logger
}

// NewScheduler creates a Scheduler submitting through the given relay.
func NewScheduler(cfg SchedulerConfig, relay domain.BundleRelay, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		relay:  relay,
		table:  make(map[string]domain.Bundle),
		logger: logger.With(slog.String("component", "bundle_scheduler")),
	}
}

// SetRateLimiter attaches a shared rate limiter for relay submissions.
func (s *Scheduler) SetRateLimiter(l domain.RateLimiter) { s.limiter = l }

// SetStore attaches a store that records terminal bundle outcomes.
func (s *Scheduler) SetStore(st domain.BundleStore) { s.store = st }

// Insert queues a bundle in pending state. Inserting an ID already present
// returns ErrBundleExists; callers wanting a retry must synthesize a fresh
// bundle with a new ID.
func (s *Scheduler) Insert(b domain.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.table[b.ID]; ok {
		return domain.ErrBundleExists
	}
	b.Status = domain.BundleStatusPending
	s.table[b.ID] = b
	s.logger.Info("bundle queued",
		slog.String("bundle_id", b.ID),
		slog.String("kind", string(b.Kind)),
		slog.Int("transactions", len(b.Transactions)),
	)
	return nil
}

// Len returns the number of pending bundles.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// Pending returns the bundle for the ID while it is still in the table.
func (s *Scheduler) Pending(id string) (domain.Bundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.table[id]
	return b, ok
}

// Run sweeps the table on the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("bundle scheduler started",
		slog.Duration("ttl", s.cfg.TTL),
		slog.Duration("sweep_interval", s.cfg.SweepInterval),
	)
	defer s.logger.Info("bundle scheduler stopped")

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnce walks the table once: expired bundles are dropped with a
// warning, live ones get exactly one submission attempt this tick. Submit
// success and submit error are both terminal.
func (s *Scheduler) SweepOnce(ctx context.Context, now time.Time) {
	for _, b := range s.snapshot() {
		if b.Expired(now, s.cfg.TTL) {
			s.resolve(ctx, b, domain.BundleStatusExpired, "", "ttl exceeded", now)
			s.logger.Warn("bundle expired",
				slog.String("bundle_id", b.ID),
				slog.String("kind", string(b.Kind)),
				slog.Duration("age", now.Sub(b.CreatedAt)),
			)
			continue
		}

		if s.limiter != nil && s.cfg.RelayLimit > 0 {
			allowed, err := s.limiter.Allow(ctx, relayLimitKey, s.cfg.RelayLimit, s.cfg.RelayWindow)
			if err == nil && !allowed {
				// Not terminal: the bundle stays pending for the next sweep
				// unless the TTL gets it first.
				s.logger.Debug("relay rate limited, deferring bundle",
					slog.String("bundle_id", b.ID),
				)
				continue
			}
		}

		submitCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
		relayID, err := s.relay.Submit(submitCtx, b)
		cancel()
		if err != nil {
			s.resolve(ctx, b, domain.BundleStatusFailed, "", err.Error(), now)
			s.logger.Error("bundle submission failed",
				slog.String("bundle_id", b.ID),
				slog.String("kind", string(b.Kind)),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.resolve(ctx, b, domain.BundleStatusSubmitted, relayID, "", now)
		s.logger.Info("bundle submitted",
			slog.String("bundle_id", b.ID),
			slog.String("kind", string(b.Kind)),
			slog.String("relay_id", relayID),
		)
	}
}

// snapshot copies the pending bundles so the sweep can release the lock
// before making relay calls.
func (s *Scheduler) snapshot() []domain.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Bundle, 0, len(s.table))
	for _, b := range s.table {
		out = append(out, b)
	}
	return out
}

// resolve removes the bundle from the table and records its terminal
// outcome when a store is attached.
func (s *Scheduler) resolve(ctx context.Context, b domain.Bundle, status domain.BundleStatus, relayID, detail string, now time.Time) {
	s.mu.Lock()
	delete(s.table, b.ID)
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	outcome := domain.BundleOutcome{
		BundleID:   b.ID,
		Kind:       b.Kind,
		Status:     status,
		TxCount:    len(b.Transactions),
		RelayID:    relayID,
		Detail:     detail,
		CreatedAt:  b.CreatedAt,
		ResolvedAt: now,
	}
	if err := s.store.Create(ctx, outcome); err != nil {
		s.logger.Warn("bundle outcome record failed",
			slog.String("bundle_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}
