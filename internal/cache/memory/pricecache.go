// Package memory implements the in-process price cache that backs the spread
// scanner. The cache is owned by the refresh loop; every other consumer works
// from read-only snapshots taken per scan cycle.
package memory

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

// significantChangePct is the relative move between consecutive samples that
// triggers an advisory log line.
const significantChangePct = 0.01

type sampleKey struct {
	token string
	base  string
	venue string
}

type sampleEntry struct {
	current  domain.PriceSample
	previous *domain.PriceSample
}

// PriceCache stores the last-seen price per (token, baseToken, venue),
// retaining the immediately preceding sample for change detection. It is safe
// for concurrent use, but by convention only the refresh loop writes to it.
type PriceCache struct {
	mu      sync.RWMutex
	samples map[sampleKey]sampleEntry
	logger  *slog.Logger
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache(logger *slog.Logger) *PriceCache {
	return &PriceCache{
		samples: make(map[sampleKey]sampleEntry),
		logger:  logger.With(slog.String("component", "price_cache")),
	}
}

// Update inserts or overwrites the sample for its (token, baseToken, venue)
// key, keeping the prior sample as previous. Samples with a non-positive
// price are rejected, and samples older than the current one for the same key
// are dropped so ObservedAt stays monotonic per key.
func (c *PriceCache) Update(sample domain.PriceSample) error {
	if sample.Price <= 0 {
		return domain.ErrInvalidPrice
	}

	key := sampleKey{token: sample.Token, base: sample.BaseToken, venue: sample.Venue}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.samples[key]
	if ok && sample.ObservedAt.Before(prev.current.ObservedAt) {
		return domain.ErrStalePrice
	}

	entry := sampleEntry{current: sample}
	if ok {
		p := prev.current
		entry.previous = &p

		if rel := math.Abs(sample.Price-p.Price) / p.Price; rel > significantChangePct {
			c.logger.Info("significant price change",
				slog.String("token", sample.Token),
				slog.String("base", sample.BaseToken),
				slog.String("venue", sample.Venue),
				slog.Float64("price", sample.Price),
				slog.Float64("change_pct", (sample.Price-p.Price)/p.Price*100),
			)
		}
	}
	c.samples[key] = entry
	return nil
}

// Get returns the current sample for the key, or false when absent.
func (c *PriceCache) Get(token, baseToken, venue string) (domain.PriceSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.samples[sampleKey{token: token, base: baseToken, venue: venue}]
	if !ok {
		return domain.PriceSample{}, false
	}
	return entry.current, true
}

// Previous returns the sample that preceded the current one for the key, or
// false when there has only ever been one sample.
func (c *PriceCache) Previous(token, baseToken, venue string) (domain.PriceSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.samples[sampleKey{token: token, base: baseToken, venue: venue}]
	if !ok || entry.previous == nil {
		return domain.PriceSample{}, false
	}
	return *entry.previous, true
}

// Len returns the number of keys currently cached.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Snapshot returns a point-in-time copy of every current sample. The scanner
// works exclusively from snapshots so a concurrent refresh cannot shift
// prices mid-scan.
func (c *PriceCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(Snapshot, len(c.samples))
	for key, entry := range c.samples {
		snap[key] = entry.current
	}
	return snap
}

// Snapshot is an immutable view of the cache at one instant.
type Snapshot map[sampleKey]domain.PriceSample

// Get returns the snapshotted sample for the key, or false when absent.
func (s Snapshot) Get(token, baseToken, venue string) (domain.PriceSample, bool) {
	sample, ok := s[sampleKey{token: token, base: baseToken, venue: venue}]
	return sample, ok
}

// FreshOnVenues returns the fresh samples for one pair across the given
// venues, in venue order. Stale and absent samples are skipped.
func (s Snapshot) FreshOnVenues(token, baseToken string, venues []string, now time.Time, maxAge time.Duration) []domain.PriceSample {
	out := make([]domain.PriceSample, 0, len(venues))
	for _, venue := range venues {
		sample, ok := s.Get(token, baseToken, venue)
		if !ok || !sample.Fresh(now, maxAge) {
			continue
		}
		out = append(out, sample)
	}
	return out
}
