package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/avelar-dev/solarb/internal/domain"
)

// PriceMirror implements domain.PriceMirror using Redis hashes. Each sample
// is stored at key "price:{token}:{base}:{venue}" with fields "price" and
// "ts" (Unix nanosecond timestamp), so operators and sibling processes can
// observe the agent's view of the market.
type PriceMirror struct {
	rdb *redis.Client
}

var _ domain.PriceMirror = (*PriceMirror)(nil)

// NewPriceMirror creates a PriceMirror backed by the given Client.
func NewPriceMirror(c *Client) *PriceMirror {
	return &PriceMirror{rdb: c.Underlying()}
}

func mirrorKey(token, base, venue string) string {
	return "price:" + token + ":" + base + ":" + venue
}

// Publish stores the latest sample for its (token, base, venue) slot.
func (pm *PriceMirror) Publish(ctx context.Context, sample domain.PriceSample) error {
	key := mirrorKey(sample.Token, sample.BaseToken, sample.Venue)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(sample.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(sample.ObservedAt.UnixNano(), 10),
	}
	if err := pm.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: mirror price %s: %w", key, err)
	}
	return nil
}
