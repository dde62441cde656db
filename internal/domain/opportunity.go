package domain

import (
	"context"
	"time"
)

// Opportunity is a cross-venue price discrepancy for a single pair. It is
// derived from a price snapshot each scan cycle and never persisted in its
// raw form; only executed opportunities reach the store.
type Opportunity struct {
	ID           string
	Token        string
	BaseToken    string
	BuyVenue     string
	SellVenue    string
	BuyPrice     float64
	SellPrice    float64
	SpreadPct    float64
	EstProfitPct float64
	DetectedAt   time.Time
}

// Spread returns the percentage spread between sell and buy prices. A
// zero buy price yields zero rather than a division panic; the scanner never
// produces one.
func Spread(buyPrice, sellPrice float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	return (sellPrice - buyPrice) / buyPrice * 100
}

// OpportunityStore persists executed opportunities for audit and archival.
type OpportunityStore interface {
	Create(ctx context.Context, opp Opportunity) error
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
