package stakepool

import (
	"math/big"

	"safetymodule/native/common"
)

// Mode is the global state machine position of a pool.
type Mode uint8

const (
	// ModeRunning accepts stakes and gates redemptions behind the cooldown.
	ModeRunning Mode = iota
	// ModePostSlashing rejects new stakes and further slashing while letting
	// holders exit without a cooldown.
	ModePostSlashing
)

func (m Mode) String() string {
	switch m {
	case ModeRunning:
		return "RUNNING"
	case ModePostSlashing:
		return "POST_SLASHING"
	default:
		return "UNKNOWN"
	}
}

// Pool captures the exchange-rate ledger and cooldown configuration of a
// staked-collateral pool. Amounts are denominated in base units of the
// underlying token.
type Pool struct {
	// Address identifies the pool. It doubles as the reward market key and
	// as the ledger account holding the underlying collateral.
	Address [20]byte
	// Underlying is the symbol of the staked token.
	Underlying string
	// ExchangeRate is the amount of underlying per share, wad scaled.
	ExchangeRate *big.Int
	// TotalShares is the outstanding share supply.
	TotalShares *big.Int
	// UnderlyingHeld tracks the collateral backing the shares.
	UnderlyingHeld *big.Int
	// PostSlashing is set between a slash and the settlement that follows
	// the liquidation auction.
	PostSlashing bool
	// CooldownSeconds is the wait between signalling intent and redeeming.
	CooldownSeconds uint64
	// UnstakeWindow bounds how long after the cooldown a redemption stays
	// valid.
	UnstakeWindow uint64
	// MaxStakeAmount caps the share balance of a single holder. Zero
	// disables the cap.
	MaxStakeAmount *big.Int
}

// Mode reports the pool's state machine position.
func (p *Pool) Mode() Mode {
	if p != nil && p.PostSlashing {
		return ModePostSlashing
	}
	return ModeRunning
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ExchangeRate = common.Clone(p.ExchangeRate)
	clone.TotalShares = common.Clone(p.TotalShares)
	clone.UnderlyingHeld = common.Clone(p.UnderlyingHeld)
	clone.MaxStakeAmount = common.Clone(p.MaxStakeAmount)
	return &clone
}

func (p *Pool) ensureDefaults() {
	if p.ExchangeRate == nil {
		p.ExchangeRate = new(big.Int).Set(common.Wad)
	}
	if p.TotalShares == nil {
		p.TotalShares = big.NewInt(0)
	}
	if p.UnderlyingHeld == nil {
		p.UnderlyingHeld = big.NewInt(0)
	}
	if p.MaxStakeAmount == nil {
		p.MaxStakeAmount = big.NewInt(0)
	}
}

// Holder stores the share balance and cooldown timestamp of a single account
// within a pool.
type Holder struct {
	Shares        *big.Int
	CooldownStart uint64
}

func (h *Holder) ensureDefaults() {
	if h.Shares == nil {
		h.Shares = big.NewInt(0)
	}
}

// PoolConfig carries the governance supplied parameters used when
// registering a pool.
type PoolConfig struct {
	Address         [20]byte
	Underlying      string
	CooldownSeconds uint64
	UnstakeWindow   uint64
	MaxStakeAmount  *big.Int
}
