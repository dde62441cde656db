package mev

import "github.com/gagliardetto/solana-go"

// Known exchange program IDs on mainnet. Transactions touching any of these
// are candidates for classification.
var (
	RaydiumAMMV4  = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OrcaWhirlpool = solana.MustPublicKeyFromBase58("9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP")
)

// VenueForProgram maps an exchange program ID to the venue identifier used by
// the price cache. Unknown programs map to the empty string.
func VenueForProgram(id solana.PublicKey) string {
	switch id {
	case RaydiumAMMV4:
		return "raydium"
	case OrcaWhirlpool:
		return "orca"
	default:
		return ""
	}
}

// DefaultPrograms returns the default exchange program allow-list.
func DefaultPrograms() []solana.PublicKey {
	return []solana.PublicKey{RaydiumAMMV4, OrcaWhirlpool}
}
