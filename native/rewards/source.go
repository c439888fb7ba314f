package rewards

import "math/big"

// BalanceSource supplies the reward-eligible balances of a market.
type BalanceSource interface {
	BalanceOf(market, user [20]byte) (*big.Int, error)
	TotalSupply(market [20]byte) (*big.Int, error)
}

// ShareLedger is the read surface of the staked-collateral pools.
type ShareLedger interface {
	SharesOf(pool, holder [20]byte) (*big.Int, error)
	TotalShares(pool [20]byte) (*big.Int, error)
}

// PoolSource reads balances straight from pool share balances; each pool
// address is its own market.
type PoolSource struct {
	Pools ShareLedger
}

func (s PoolSource) BalanceOf(market, user [20]byte) (*big.Int, error) {
	return s.Pools.SharesOf(market, user)
}

func (s PoolSource) TotalSupply(market [20]byte) (*big.Int, error) {
	return s.Pools.TotalShares(market)
}

// PositionTracker is an external venue tracking liquidity positions per
// market.
type PositionTracker interface {
	Position(market, user [20]byte) (*big.Int, error)
	TotalLiquidity(market [20]byte) (*big.Int, error)
}

// PositionSource adapts a PositionTracker.
type PositionSource struct {
	Tracker PositionTracker
}

func (s PositionSource) BalanceOf(market, user [20]byte) (*big.Int, error) {
	return s.Tracker.Position(market, user)
}

func (s PositionSource) TotalSupply(market [20]byte) (*big.Int, error) {
	return s.Tracker.TotalLiquidity(market)
}
