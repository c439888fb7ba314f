package rewards

import (
	"fmt"
	"math/big"

	"safetymodule/core/events"
	"safetymodule/native/common"
)

// Distributor settles user rewards for one family of markets. It composes
// the shared Controller with a BalanceSource and a crediting Policy.
type Distributor struct {
	*Controller
	source   BalanceSource
	policy   Policy
	treasury [20]byte
}

// NewDistributor constructs a distributor. namespace keeps its state apart
// from other distributors sharing the same backend; rewards are paid out of
// the treasury account.
func NewDistributor(namespace string, source BalanceSource, policy Policy, treasury [20]byte) *Distributor {
	if policy == nil {
		policy = MultiplierPolicy{}
	}
	return &Distributor{
		Controller: newController(namespace),
		source:     source,
		policy:     policy,
		treasury:   treasury,
	}
}

// NewPoolDistributor wires the loyalty-multiplier variant over pool shares.
func NewPoolDistributor(namespace string, pools ShareLedger, treasury [20]byte) *Distributor {
	return NewDistributor(namespace, PoolSource{Pools: pools}, MultiplierPolicy{}, treasury)
}

// NewPositionDistributor wires the early-withdrawal variant over an external
// position tracker.
func NewPositionDistributor(namespace string, tracker PositionTracker, treasury [20]byte) *Distributor {
	return NewDistributor(namespace, PositionSource{Tracker: tracker}, EarlyWithdrawalPolicy{}, treasury)
}

// Treasury returns the account rewards are paid from.
func (d *Distributor) Treasury() [20]byte { return d.treasury }

// AccrueRewards settles user in market against the cached balance.
func (d *Distributor) AccrueRewards(market, user [20]byte) (err error) {
	finish, err := d.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	return d.settle(market, user, false)
}

// UpdatePosition settles user and then refreshes the cached balances of the
// user and the market from the balance source.
func (d *Distributor) UpdatePosition(market, user [20]byte) (err error) {
	finish, err := d.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if d.source == nil {
		return errNilSource
	}
	return d.settle(market, user, true)
}

func (d *Distributor) loadPosition(market, user [20]byte) (*Position, bool, error) {
	pos, ok, err := d.state.RewardPosition(d.namespace, market, user)
	if err != nil {
		return nil, false, fmt.Errorf("rewards: load position: %w", err)
	}
	if !ok || pos == nil {
		pos = &Position{Market: market, User: user}
		ok = false
	}
	pos.ensureDefaults()
	return pos, ok, nil
}

func (d *Distributor) settle(market, user [20]byte, refresh bool) error {
	if err := d.updateMarket(market); err != nil {
		return err
	}
	ms, err := d.loadMarket(market)
	if err != nil {
		return err
	}
	pos, known, err := d.loadPosition(market, user)
	if err != nil {
		return err
	}
	params, err := d.params()
	if err != nil {
		return err
	}
	newBalance := pos.Balance
	if refresh {
		if newBalance, err = d.source.BalanceOf(market, user); err != nil {
			return fmt.Errorf("rewards: read balance: %w", err)
		}
		if newBalance == nil {
			newBalance = big.NewInt(0)
		}
	}
	now := d.now()
	for _, token := range ms.Tokens {
		acc, _, err := d.loadAccumulator(market, token)
		if err != nil {
			return err
		}
		stored, err := d.state.RewardUserIndex(d.namespace, market, user, token)
		if err != nil {
			return fmt.Errorf("rewards: load user index: %w", err)
		}
		last := acc.baseline(stored)
		if acc.CumulativePerShare.Cmp(last) <= 0 {
			continue
		}
		diff := new(big.Int).Sub(acc.CumulativePerShare, last)
		owed := common.MulDiv(diff, pos.Balance, common.Wad)
		if owed.Sign() > 0 {
			credit, forfeit := d.policy.Apply(pos, owed, newBalance, now, params)
			if err := d.credit(market, user, token, credit); err != nil {
				return err
			}
			if forfeit.Sign() > 0 {
				d.emit(events.RewardsForfeited{Distributor: d.namespace, Market: market, User: user, Token: token, Amount: forfeit})
			}
		}
		if err := d.state.PutRewardUserIndex(d.namespace, market, user, token, acc.CumulativePerShare); err != nil {
			return err
		}
	}
	if !refresh {
		if !known {
			return nil
		}
		return d.state.PutRewardPosition(d.namespace, pos)
	}
	d.policy.Rebalance(pos, newBalance, now)
	pos.Balance = new(big.Int).Set(newBalance)
	total, err := d.source.TotalSupply(market)
	if err != nil {
		return fmt.Errorf("rewards: read total supply: %w", err)
	}
	ms.TotalSupply = common.Clone(total)
	if err := d.state.PutRewardMarket(d.namespace, ms); err != nil {
		return err
	}
	if err := d.state.PutRewardPosition(d.namespace, pos); err != nil {
		return err
	}
	if !known {
		return d.registerMarket(user, market)
	}
	return nil
}

func (d *Distributor) credit(market, user [20]byte, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	claimable, err := d.state.RewardClaimable(d.namespace, user, token)
	if err != nil {
		return fmt.Errorf("rewards: load claimable: %w", err)
	}
	next := new(big.Int).Add(common.Clone(claimable), amount)
	if err := d.state.PutRewardClaimable(d.namespace, user, token, next); err != nil {
		return err
	}
	d.emit(events.RewardsAccrued{Distributor: d.namespace, Market: market, User: user, Token: token, Amount: amount})
	return nil
}

func (d *Distributor) registerMarket(user, market [20]byte) error {
	markets, err := d.state.RewardUserMarkets(d.namespace, user)
	if err != nil {
		return err
	}
	for _, m := range markets {
		if m == market {
			return nil
		}
	}
	return d.state.PutRewardUserMarkets(d.namespace, user, append(markets, market))
}

// ClaimRewards settles user in every market it participates in and pays out
// every token with a claimable balance.
func (d *Distributor) ClaimRewards(user [20]byte) (map[string]*big.Int, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	tokens, err := d.state.RewardTokenList(d.namespace)
	if err != nil {
		return nil, err
	}
	return d.ClaimRewardsFor(user, tokens)
}

// ClaimRewardsFor is ClaimRewards restricted to tokens. When the treasury
// cannot cover a claim the unpaid remainder stays claimable.
func (d *Distributor) ClaimRewardsFor(user [20]byte, tokens []string) (paid map[string]*big.Int, err error) {
	finish, err := d.begin(true)
	if err != nil {
		return nil, err
	}
	defer finish(&err)
	if d.treasury == ([20]byte{}) {
		return nil, ErrTreasuryNotSet
	}
	markets, err := d.state.RewardUserMarkets(d.namespace, user)
	if err != nil {
		return nil, err
	}
	for _, m := range markets {
		if err = d.settle(m, user, false); err != nil {
			return nil, err
		}
	}
	paid = make(map[string]*big.Int, len(tokens))
	for _, raw := range tokens {
		token := normalizeToken(raw)
		if token == "" {
			continue
		}
		owed, loadErr := d.state.RewardClaimable(d.namespace, user, token)
		if loadErr != nil {
			return nil, fmt.Errorf("rewards: load claimable: %w", loadErr)
		}
		if owed == nil || owed.Sign() == 0 {
			continue
		}
		available, balErr := d.state.Balance(d.treasury[:], token)
		if balErr != nil {
			return nil, balErr
		}
		payout := common.Min(owed, available)
		remaining := new(big.Int).Sub(owed, payout)
		if payout.Sign() > 0 {
			if err = d.state.Transfer(token, d.treasury[:], user[:], payout); err != nil {
				return nil, err
			}
			d.emit(events.RewardsClaimed{Distributor: d.namespace, User: user, Token: token, Amount: payout})
			paid[token] = payout
		}
		if remaining.Sign() > 0 {
			d.emit(events.RewardsShortfall{Distributor: d.namespace, User: user, Token: token, Unpaid: remaining})
		}
		if err = d.state.PutRewardClaimable(d.namespace, user, token, remaining); err != nil {
			return nil, err
		}
	}
	return paid, nil
}

// Claimable returns the settled, unpaid rewards of user in token.
func (d *Distributor) Claimable(user [20]byte, token string) (*big.Int, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	v, err := d.state.RewardClaimable(d.namespace, user, normalizeToken(token))
	if err != nil {
		return nil, err
	}
	return common.Clone(v), nil
}

// Position returns the cached position of user in market.
func (d *Distributor) Position(market, user [20]byte) (*Position, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	pos, _, err := d.loadPosition(market, user)
	return pos, err
}

// Multiplier returns the current loyalty multiplier of user in market, wad
// scaled. Users without a balance sit at 1.0.
func (d *Distributor) Multiplier(market, user [20]byte) (*big.Int, error) {
	pos, err := d.Position(market, user)
	if err != nil {
		return nil, err
	}
	if pos.Balance.Sign() == 0 {
		return new(big.Int).Set(common.Wad), nil
	}
	params, err := d.params()
	if err != nil {
		return nil, err
	}
	return Multiplier(pos.MultiplierStart, d.now(), params), nil
}

// Params returns the active distributor configuration.
func (d *Distributor) Params() (*Params, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	return d.params()
}

// SetParams replaces the whole configuration after validation. It is used
// when seeding a distributor from genesis.
func (d *Distributor) SetParams(caller [20]byte, p Params) error {
	return d.updateParams(caller, "params", func(cur *Params) (string, error) {
		if err := p.Validate(); err != nil {
			return "", err
		}
		*cur = p
		return "all", nil
	})
}

// SetMaxMultiplier updates the multiplier ceiling.
func (d *Distributor) SetMaxMultiplier(caller [20]byte, v *big.Int) error {
	return d.updateParams(caller, "maxMultiplier", func(p *Params) (string, error) {
		if v == nil || v.Cmp(common.Wad) < 0 || v.Cmp(MaxMultiplierCeiling) > 0 {
			return "", ErrInvalidMultiplier
		}
		p.MaxMultiplier = new(big.Int).Set(v)
		return v.String(), nil
	})
}

// SetSmoothingValue updates the multiplier time constant in seconds.
func (d *Distributor) SetSmoothingValue(caller [20]byte, v uint64) error {
	return d.updateParams(caller, "smoothingValue", func(p *Params) (string, error) {
		if v == 0 {
			return "", ErrInvalidSmoothing
		}
		p.SmoothingValue = v
		return fmt.Sprint(v), nil
	})
}

// SetEarlyWithdrawalThreshold updates the penalty window in seconds.
func (d *Distributor) SetEarlyWithdrawalThreshold(caller [20]byte, v uint64) error {
	return d.updateParams(caller, "earlyWithdrawalThreshold", func(p *Params) (string, error) {
		p.EarlyWithdrawalThreshold = v
		return fmt.Sprint(v), nil
	})
}

// SetMaxRewardTokens updates the per-market token limit. Markets already
// above a lowered limit keep their tokens.
func (d *Distributor) SetMaxRewardTokens(caller [20]byte, v uint64) error {
	return d.updateParams(caller, "maxRewardTokens", func(p *Params) (string, error) {
		if v == 0 {
			return "", ErrInvalidMaxTokens
		}
		p.MaxRewardTokens = v
		return fmt.Sprint(v), nil
	})
}

func (d *Distributor) updateParams(caller [20]byte, name string, apply func(*Params) (string, error)) (err error) {
	finish, err := d.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(d.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	params, err := d.params()
	if err != nil {
		return err
	}
	value, err := apply(params)
	if err != nil {
		return err
	}
	if err = d.state.PutRewardParams(d.namespace, params); err != nil {
		return err
	}
	d.emit(events.RewardParamUpdated{Distributor: d.namespace, Param: name, Value: value})
	return nil
}
