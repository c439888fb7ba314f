package safety

import "math/big"

// DefaultMaxPercentUserLoss caps a single slash at 30% of pool collateral.
const DefaultMaxPercentUserLoss = 3_000

// Params is the governance configuration of the orchestrator.
type Params struct {
	// MaxPercentUserLoss bounds a slash, in basis points of the collateral
	// held by the pool.
	MaxPercentUserLoss uint64
}

// DefaultParams returns the baseline orchestrator configuration.
func DefaultParams() Params {
	return Params{MaxPercentUserLoss: DefaultMaxPercentUserLoss}
}

// PoolAuction links a pool to the auction liquidating its slashed
// collateral.
type PoolAuction struct {
	Pool      [20]byte
	AuctionID uint64
	Active    bool
}

// SlashParams describes a slash and the auction selling the seized
// collateral.
type SlashParams struct {
	Amount            *big.Int
	PaymentToken      string
	NumLots           uint64
	LotPrice          *big.Int
	InitialLotSize    *big.Int
	LotIncrement      *big.Int
	LotIncreasePeriod uint64
	TimeLimit         uint64
}
