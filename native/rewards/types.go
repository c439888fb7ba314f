package rewards

import (
	"math/big"

	"safetymodule/native/common"
)

const (
	// DefaultMaxRewardTokens bounds how many tokens a market can emit.
	DefaultMaxRewardTokens = 10
	// DefaultReductionPeriod is the interval after which inflation decays.
	DefaultReductionPeriod = 365 * 24 * 60 * 60
	// DefaultSmoothingValue is the multiplier time constant in seconds.
	DefaultSmoothingValue = 30 * 24 * 60 * 60
	// DefaultEarlyWithdrawalThreshold is the lock after a position increase.
	DefaultEarlyWithdrawalThreshold = 10 * 24 * 60 * 60
	// MinReductionPeriod keeps decay integration bounded.
	MinReductionPeriod = 24 * 60 * 60
)

var (
	// DefaultMaxMultiplier is the loyalty multiplier ceiling, wad scaled.
	DefaultMaxMultiplier = new(big.Int).Mul(big.NewInt(4), common.Wad)
	// MaxMultiplierCeiling bounds what governance can configure.
	MaxMultiplierCeiling = new(big.Int).Mul(big.NewInt(10), common.Wad)
)

// Params is the governance mutable configuration of a distributor. It is
// only changed through the validated setters on Distributor.
type Params struct {
	MaxMultiplier            *big.Int
	SmoothingValue           uint64
	EarlyWithdrawalThreshold uint64
	MaxRewardTokens          uint64
	ReductionPeriod          uint64
}

// DefaultParams returns the baseline distributor configuration.
func DefaultParams() Params {
	return Params{
		MaxMultiplier:            new(big.Int).Set(DefaultMaxMultiplier),
		SmoothingValue:           DefaultSmoothingValue,
		EarlyWithdrawalThreshold: DefaultEarlyWithdrawalThreshold,
		MaxRewardTokens:          DefaultMaxRewardTokens,
		ReductionPeriod:          DefaultReductionPeriod,
	}
}

// Validate checks the parameter bounds.
func (p Params) Validate() error {
	if p.MaxMultiplier == nil || p.MaxMultiplier.Cmp(common.Wad) < 0 || p.MaxMultiplier.Cmp(MaxMultiplierCeiling) > 0 {
		return ErrInvalidMultiplier
	}
	if p.SmoothingValue == 0 {
		return ErrInvalidSmoothing
	}
	if p.MaxRewardTokens == 0 {
		return ErrInvalidMaxTokens
	}
	if p.ReductionPeriod < MinReductionPeriod {
		return ErrInvalidPeriod
	}
	return nil
}

// TokenConfig describes the emission schedule and market allocation of a
// reward token. Configs are never deleted; removal clears the allocation.
type TokenConfig struct {
	Token string
	// InitialRate is the emission in token base units per second at
	// InitialTimestamp.
	InitialRate *big.Int
	// ReductionFactor divides the rate once per reduction period, wad
	// scaled and never below 1e18.
	ReductionFactor  *big.Int
	InitialTimestamp uint64
	Markets          [][20]byte
	// Weights are basis points aligned with Markets, summing to 10000.
	Weights []uint64
	Paused  bool
	Removed bool
}

// WeightFor returns the basis-point weight of market, zero when absent.
func (c *TokenConfig) WeightFor(market [20]byte) uint64 {
	for i, m := range c.Markets {
		if m == market && i < len(c.Weights) {
			return c.Weights[i]
		}
	}
	return 0
}

// MarketState holds the per-market reward token list and the cached total
// balance used when spreading emissions.
type MarketState struct {
	Market      [20]byte
	TotalSupply *big.Int
	Tokens      []string
}

func (m *MarketState) hasToken(token string) bool {
	for _, t := range m.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

func (m *MarketState) removeToken(token string) {
	kept := m.Tokens[:0]
	for _, t := range m.Tokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	m.Tokens = kept
}

// Accumulator is the cumulative reward per unit of balance for a
// (market, token) pair, wad scaled.
type Accumulator struct {
	Market             [20]byte
	Token              string
	CumulativePerShare *big.Int
	LastUpdated        uint64
	// ActivationIndex is CumulativePerShare when the token last became
	// active in the market. User indexes below it are stale.
	ActivationIndex *big.Int `rlp:"optional"`
}

// baseline returns the index a user settles from given the index stored
// for them, which may be nil or predate the current activation.
func (a *Accumulator) baseline(last *big.Int) *big.Int {
	if a.ActivationIndex != nil && (last == nil || last.Cmp(a.ActivationIndex) < 0) {
		return new(big.Int).Set(a.ActivationIndex)
	}
	if last == nil {
		return big.NewInt(0)
	}
	return last
}

// Position is a user's cached balance and policy timers in a market.
type Position struct {
	Market          [20]byte
	User            [20]byte
	Balance         *big.Int
	MultiplierStart uint64
	PositionChange  uint64
}

func (p *Position) ensureDefaults() {
	if p.Balance == nil {
		p.Balance = big.NewInt(0)
	}
}
