package domain

import (
	"context"
	"io"
	"time"
)

// SwapResult is the outcome of a single swap call against the execution
// service.
type SwapResult struct {
	Success   bool
	Signature string
}

// SwapExecutor submits a single swap to the external execution service. The
// call is at-most-once; the core never retries a failed swap.
type SwapExecutor interface {
	Swap(ctx context.Context, fromToken, toToken string, amount float64, venue string) (SwapResult, error)
}

// PriceQuoter looks up the current price of token quoted in baseToken on a
// single venue.
type PriceQuoter interface {
	Price(ctx context.Context, token, baseToken, venue string) (float64, error)
}

// BundleRelay submits a bundle to the external relay service and returns the
// relay-assigned bundle ID on acceptance.
type BundleRelay interface {
	Submit(ctx context.Context, bundle Bundle) (string, error)
}

// PriceMirror publishes the latest price samples to a shared cache so
// operators and sibling processes can observe them. Mirror failures are
// advisory and never block the refresh loop.
type PriceMirror interface {
	Publish(ctx context.Context, sample PriceSample) error
}

// SignalBus broadcasts detected opportunities to interested consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter bounds the rate of calls against a shared external resource.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads a finished object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
