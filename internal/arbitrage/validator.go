package arbitrage

import (
	"time"

	"github.com/avelar-dev/solarb/internal/cache/memory"
	"github.com/avelar-dev/solarb/internal/domain"
)

// Validator re-checks a discovered opportunity immediately before capital is
// committed. Discovery works from a snapshot; by execution time the live
// cache may have moved, so profitability is recomputed from current entries.
type Validator struct {
	feePct        float64
	freshness     time.Duration
	allowedVenues map[string]struct{}
	allowedTokens map[string]struct{}
}

// NewValidator creates a Validator with static venue and token allow-lists.
// feePct and freshness should match the scanner's settings so discovery and
// validation price the same costs against the same staleness rules.
func NewValidator(venues, tokens []string, feePct float64, freshness time.Duration) *Validator {
	v := &Validator{
		feePct:        feePct,
		freshness:     freshness,
		allowedVenues: make(map[string]struct{}, len(venues)),
		allowedTokens: make(map[string]struct{}, len(tokens)),
	}
	for _, venue := range venues {
		v.allowedVenues[venue] = struct{}{}
	}
	for _, token := range tokens {
		v.allowedTokens[token] = struct{}{}
	}
	return v
}

// StillProfitable re-reads the two cache entries the opportunity was built
// from and recomputes the net spread from current prices. It returns false
// when either entry is absent (the opportunity decayed) or the recomputed
// profit no longer clears requiredProfitPct. The check is side-effect-free:
// calling it twice without an intervening cache update yields the same
// answer.
func (v *Validator) StillProfitable(opp domain.Opportunity, cache *memory.PriceCache, now time.Time, requiredProfitPct float64) bool {
	buy, ok := cache.Get(opp.Token, opp.BaseToken, opp.BuyVenue)
	if !ok || !buy.Fresh(now, v.freshness) {
		return false
	}
	sell, ok := cache.Get(opp.Token, opp.BaseToken, opp.SellVenue)
	if !ok || !sell.Fresh(now, v.freshness) {
		return false
	}

	netProfit := domain.Spread(buy.Price, sell.Price) - v.feePct
	return netProfit > requiredProfitPct
}

// Eligible reports whether every participant of the opportunity is on the
// static allow-lists.
func (v *Validator) Eligible(opp domain.Opportunity) bool {
	if _, ok := v.allowedVenues[opp.BuyVenue]; !ok {
		return false
	}
	if _, ok := v.allowedVenues[opp.SellVenue]; !ok {
		return false
	}
	if _, ok := v.allowedTokens[opp.Token]; !ok {
		return false
	}
	_, ok := v.allowedTokens[opp.BaseToken]
	return ok
}
