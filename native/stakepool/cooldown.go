package stakepool

import (
	"math/big"
)

// nextCooldown computes the receiver's cooldown start after it receives
// amount shares from a sender whose cooldown started at fromStart. Stakes pass
// a zero fromStart.
//
// Precedence:
//  1. receiver has no cooldown: stays unset
//  2. receiver's window already closed: reset to unset
//  3. sender unset, expired or older than receiver: receiver unchanged
//  4. otherwise the amount-weighted blend of both timestamps
func nextCooldown(pool *Pool, fromStart, toStart uint64, amount, toBalance *big.Int, now uint64) uint64 {
	if toStart == 0 {
		return 0
	}
	if cooldownExpired(pool, toStart, now) {
		return 0
	}
	if fromStart == 0 || cooldownExpired(pool, fromStart, now) || fromStart < toStart {
		return toStart
	}
	total := new(big.Int).Add(amount, toBalance)
	if total.Sign() == 0 {
		return toStart
	}
	weighted := new(big.Int).Mul(amount, new(big.Int).SetUint64(fromStart))
	weighted.Add(weighted, new(big.Int).Mul(toBalance, new(big.Int).SetUint64(toStart)))
	weighted.Quo(weighted, total)
	return weighted.Uint64()
}

func cooldownExpired(pool *Pool, start, now uint64) bool {
	return start+pool.CooldownSeconds+pool.UnstakeWindow < now
}
