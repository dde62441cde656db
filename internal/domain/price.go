package domain

import "time"

// PriceSample is one observed quote for a token priced in a base token on a
// single venue. Price is always strictly positive; samples with a
// non-positive price are rejected at the cache boundary.
type PriceSample struct {
	Token      string
	BaseToken  string
	Venue      string
	Price      float64
	ObservedAt time.Time
}

// Fresh reports whether the sample was observed within maxAge of now.
func (s PriceSample) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.ObservedAt) < maxAge
}

// PairKey identifies a (token, baseToken) pair independent of venue.
type PairKey struct {
	Token     string
	BaseToken string
}

// Universe is the fixed set of tokens, base tokens, and venues the bot
// watches. It is loaded from configuration at startup and never mutated.
type Universe struct {
	Tokens     []string
	BaseTokens []string
	Venues     []string
}

// Pairs enumerates every (token, baseToken) combination with token !=
// baseToken, in deterministic configuration order.
func (u Universe) Pairs() []PairKey {
	pairs := make([]PairKey, 0, len(u.Tokens)*len(u.BaseTokens))
	for _, token := range u.Tokens {
		for _, base := range u.BaseTokens {
			if token == base {
				continue
			}
			pairs = append(pairs, PairKey{Token: token, BaseToken: base})
		}
	}
	return pairs
}
