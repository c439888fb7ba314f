package rewards

import (
	"math/big"

	"safetymodule/native/common"
)

// Policy shapes how owed rewards are credited for a distributor variant and
// how position timers move when the balance changes.
type Policy interface {
	// Apply splits owed into the credited and forfeited parts. newBalance
	// equals pos.Balance when the balance is not changing.
	Apply(pos *Position, owed, newBalance *big.Int, now uint64, params *Params) (credit, forfeit *big.Int)
	// Rebalance updates pos timers for a move to newBalance.
	Rebalance(pos *Position, newBalance *big.Int, now uint64)
}

// MultiplierPolicy scales rewards by the loyalty multiplier. Used by pool
// distributors.
type MultiplierPolicy struct{}

// Multiplier returns 1 + (max-1) * e / (e + smoothing), wad scaled, where e
// is the time since the smoothed stake start.
func Multiplier(start, now uint64, params *Params) *big.Int {
	if start == 0 || now <= start || params == nil || params.MaxMultiplier == nil {
		return new(big.Int).Set(common.Wad)
	}
	elapsed := new(big.Int).SetUint64(now - start)
	denom := new(big.Int).Add(elapsed, new(big.Int).SetUint64(params.SmoothingValue))
	headroom := new(big.Int).Sub(params.MaxMultiplier, common.Wad)
	if headroom.Sign() <= 0 {
		return new(big.Int).Set(common.Wad)
	}
	bonus := common.MulDiv(headroom, elapsed, denom)
	out := bonus.Add(bonus, common.Wad)
	if out.Cmp(params.MaxMultiplier) > 0 {
		return new(big.Int).Set(params.MaxMultiplier)
	}
	return out
}

func (MultiplierPolicy) Apply(pos *Position, owed, _ *big.Int, now uint64, params *Params) (*big.Int, *big.Int) {
	mult := Multiplier(pos.MultiplierStart, now, params)
	return common.WadMul(owed, mult), big.NewInt(0)
}

func (MultiplierPolicy) Rebalance(pos *Position, newBalance *big.Int, now uint64) {
	old := pos.Balance
	switch {
	case newBalance.Sign() == 0:
	case old.Sign() == 0 || pos.MultiplierStart == 0:
		pos.MultiplierStart = now
	case newBalance.Cmp(old) > 0:
		elapsed := new(big.Int).SetUint64(now - pos.MultiplierStart)
		shift := common.MulDiv(elapsed, old, newBalance)
		pos.MultiplierStart = now - shift.Uint64()
	}
}

// EarlyWithdrawalPolicy forfeits a pro-rata share of rewards when a position
// shrinks within the threshold after its last increase. Used by position
// distributors.
type EarlyWithdrawalPolicy struct{}

func (EarlyWithdrawalPolicy) Apply(pos *Position, owed, newBalance *big.Int, now uint64, params *Params) (*big.Int, *big.Int) {
	credit := new(big.Int).Set(owed)
	forfeit := big.NewInt(0)
	if params == nil || params.EarlyWithdrawalThreshold == 0 || newBalance.Cmp(pos.Balance) >= 0 {
		return credit, forfeit
	}
	unlock := pos.PositionChange + params.EarlyWithdrawalThreshold
	if now >= unlock {
		return credit, forfeit
	}
	held := uint64(0)
	if now > pos.PositionChange {
		held = now - pos.PositionChange
	}
	credit = common.MulDiv(owed, new(big.Int).SetUint64(held), new(big.Int).SetUint64(params.EarlyWithdrawalThreshold))
	forfeit.Sub(owed, credit)
	return credit, forfeit
}

func (EarlyWithdrawalPolicy) Rebalance(pos *Position, newBalance *big.Int, now uint64) {
	if newBalance.Cmp(pos.Balance) > 0 {
		pos.PositionChange = now
	}
}
