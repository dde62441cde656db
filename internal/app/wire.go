package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/avelar-dev/solarb/internal/blob/s3"
	"github.com/avelar-dev/solarb/internal/cache/redis"
	"github.com/avelar-dev/solarb/internal/config"
	"github.com/avelar-dev/solarb/internal/domain"
	"github.com/avelar-dev/solarb/internal/notify"
	"github.com/avelar-dev/solarb/internal/platform/jito"
	"github.com/avelar-dev/solarb/internal/platform/jupiter"
	"github.com/avelar-dev/solarb/internal/platform/swapapi"
	"github.com/avelar-dev/solarb/internal/store/postgres"
)

// clientTimeout is the HTTP timeout applied to the platform clients. Loop
// callers apply their own, shorter per-call deadlines on top of it.
const clientTimeout = 10 * time.Second

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Platform clients
	Quoter  domain.PriceQuoter
	Swapper domain.SwapExecutor
	Relay   domain.BundleRelay

	// Stores (nil unless postgres is enabled)
	OpportunityStore domain.OpportunityStore
	BundleStore      domain.BundleStore

	// Redis adapters (nil unless redis is enabled)
	Mirror      domain.PriceMirror
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Blob storage (nil unless s3 is enabled)
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Quoter:  jupiter.New(cfg.Endpoints.QuoteURL, clientTimeout),
		Swapper: swapapi.New(cfg.Endpoints.SwapURL, cfg.Endpoints.SwapAPIKey, clientTimeout),
		Relay:   jito.NewRelay(cfg.Endpoints.RelayURL, clientTimeout),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.BundleStore = postgres.NewBundleStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Mirror = redis.NewPriceMirror(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)

		// Archiver needs the stores to read from.
		if deps.OpportunityStore != nil && deps.BundleStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.OpportunityStore, deps.BundleStore)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
