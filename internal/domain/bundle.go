package domain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// BundleKind classifies why a bundle was synthesized.
type BundleKind string

const (
	BundleKindSandwich  BundleKind = "sandwich"
	BundleKindArbitrage BundleKind = "arbitrage"
)

// BundleStatus is the lifecycle state of a queued bundle. Submitted, expired,
// and failed are terminal; a terminal bundle is removed from the scheduler
// table and never retried under the same ID.
type BundleStatus string

const (
	BundleStatusPending   BundleStatus = "pending"
	BundleStatusSubmitted BundleStatus = "submitted"
	BundleStatusExpired   BundleStatus = "expired"
	BundleStatusFailed    BundleStatus = "failed"
)

// TxRole describes a transaction's position within a bundle.
type TxRole string

const (
	TxRoleFrontRun TxRole = "front_run"
	TxRoleTarget   TxRole = "target"
	TxRoleBackRun  TxRole = "back_run"
	TxRoleSwapLeg  TxRole = "swap_leg"
)

// TxDescriptor is an opaque transaction slot inside a bundle. The actual
// signing and wire encoding happens in the relay service; the core only
// carries enough to identify the leg and hand it over.
type TxDescriptor struct {
	Role    TxRole
	Program solana.PublicKey
	Venue   string
	Payload []byte
}

// Bundle is an ordered set of transactions submitted together for atomic or
// near-atomic inclusion.
type Bundle struct {
	ID           string
	Kind         BundleKind
	Transactions []TxDescriptor
	CreatedAt    time.Time
	Status       BundleStatus
}

// Expired reports whether the bundle has outlived its time-to-live.
func (b Bundle) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(b.CreatedAt) > ttl
}

// BundleOutcome is the terminal record of a bundle, persisted for audit.
type BundleOutcome struct {
	BundleID   string
	Kind       BundleKind
	Status     BundleStatus
	TxCount    int
	RelayID    string
	Detail     string
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// BundleStore persists terminal bundle outcomes.
type BundleStore interface {
	Create(ctx context.Context, outcome BundleOutcome) error
	ListBefore(ctx context.Context, before time.Time) ([]BundleOutcome, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
