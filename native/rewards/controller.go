package rewards

import (
	"fmt"
	"math/big"
	"strings"

	"safetymodule/core/events"
	"safetymodule/core/types"
	"safetymodule/native/common"
)

const moduleName = "rewards"

type engineState interface {
	RewardParams(ns string) (*Params, bool, error)
	PutRewardParams(ns string, p *Params) error
	RewardTokenConfig(ns, token string) (*TokenConfig, bool, error)
	PutRewardTokenConfig(ns string, cfg *TokenConfig) error
	RewardTokenList(ns string) ([]string, error)
	RewardMarket(ns string, market [20]byte) (*MarketState, bool, error)
	PutRewardMarket(ns string, m *MarketState) error
	RewardAccumulator(ns string, market [20]byte, token string) (*Accumulator, bool, error)
	PutRewardAccumulator(ns string, acc *Accumulator) error
	RewardPosition(ns string, market, user [20]byte) (*Position, bool, error)
	PutRewardPosition(ns string, pos *Position) error
	RewardUserIndex(ns string, market, user [20]byte, token string) (*big.Int, error)
	PutRewardUserIndex(ns string, market, user [20]byte, token string, v *big.Int) error
	RewardClaimable(ns string, user [20]byte, token string) (*big.Int, error)
	PutRewardClaimable(ns string, user [20]byte, token string, v *big.Int) error
	RewardUserMarkets(ns string, user [20]byte) ([][20]byte, error)
	PutRewardUserMarkets(ns string, user [20]byte, markets [][20]byte) error
	Transfer(symbol string, from, to []byte, amount *big.Int) error
	Balance(addr []byte, symbol string) (*big.Int, error)
	HasRole(role string, addr []byte) bool
	Snapshot() int
	RevertToSnapshot(id int)
	ReleaseSnapshot(id int)
	AppendEvent(evt *types.Event)
}

// Controller is the weighted time-decay accumulator shared by every
// distributor variant. It owns reward token configs, per-market token lists
// and the (market, token) accumulators of one namespace.
type Controller struct {
	namespace string
	state     engineState
	pauses    common.PauseView
	clock     common.Clock
	lock      common.ReentrancyGuard
}

func newController(namespace string) *Controller {
	return &Controller{namespace: namespace, clock: common.SystemClock{}}
}

// SetState wires the state backend.
func (c *Controller) SetState(state engineState) { c.state = state }

// SetPauses wires the pause view.
func (c *Controller) SetPauses(p common.PauseView) { c.pauses = p }

// SetClock overrides the timestamp source.
func (c *Controller) SetClock(clock common.Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// Namespace identifies the distributor owning this controller.
func (c *Controller) Namespace() string { return c.namespace }

func (c *Controller) now() uint64 { return c.clock.Now() }

func (c *Controller) emit(evt events.Event) {
	c.state.AppendEvent(evt.Event())
}

func (c *Controller) begin(guarded bool) (func(*error), error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	if guarded {
		if err := common.Guard(c.pauses, moduleName); err != nil {
			return nil, err
		}
	}
	if err := c.lock.Enter(); err != nil {
		return nil, err
	}
	snap := c.state.Snapshot()
	return func(errp *error) {
		if errp != nil && *errp != nil {
			c.state.RevertToSnapshot(snap)
		} else {
			c.state.ReleaseSnapshot(snap)
		}
		c.lock.Exit()
	}, nil
}

func (c *Controller) params() (*Params, error) {
	p, ok, err := c.state.RewardParams(c.namespace)
	if err != nil {
		return nil, fmt.Errorf("rewards: load params: %w", err)
	}
	if !ok || p == nil {
		def := DefaultParams()
		return &def, nil
	}
	return p, nil
}

func (c *Controller) loadToken(token string) (*TokenConfig, error) {
	cfg, ok, err := c.state.RewardTokenConfig(c.namespace, token)
	if err != nil {
		return nil, fmt.Errorf("rewards: load token: %w", err)
	}
	if !ok || cfg == nil {
		return nil, ErrTokenNotFound
	}
	return cfg, nil
}

func (c *Controller) loadMarket(market [20]byte) (*MarketState, error) {
	ms, ok, err := c.state.RewardMarket(c.namespace, market)
	if err != nil {
		return nil, fmt.Errorf("rewards: load market: %w", err)
	}
	if !ok || ms == nil {
		ms = &MarketState{Market: market}
	}
	if ms.TotalSupply == nil {
		ms.TotalSupply = big.NewInt(0)
	}
	return ms, nil
}

func (c *Controller) loadAccumulator(market [20]byte, token string) (*Accumulator, bool, error) {
	acc, ok, err := c.state.RewardAccumulator(c.namespace, market, token)
	if err != nil {
		return nil, false, fmt.Errorf("rewards: load accumulator: %w", err)
	}
	if !ok || acc == nil {
		return &Accumulator{Market: market, Token: token, CumulativePerShare: big.NewInt(0)}, false, nil
	}
	if acc.CumulativePerShare == nil {
		acc.CumulativePerShare = big.NewInt(0)
	}
	return acc, true, nil
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// rateForPeriod returns initialRate / factor^n, compounding per period.
func rateForPeriod(cfg *TokenConfig, n uint64) *big.Int {
	rate := common.Clone(cfg.InitialRate)
	if cfg.ReductionFactor == nil || cfg.ReductionFactor.Cmp(common.Wad) <= 0 {
		return rate
	}
	for i := uint64(0); i < n && rate.Sign() > 0; i++ {
		rate = common.WadDiv(rate, cfg.ReductionFactor)
	}
	return rate
}

// emitted integrates the decaying inflation rate over [from, to), splitting
// the interval at reduction period boundaries.
func emitted(cfg *TokenConfig, from, to, period uint64) *big.Int {
	total := big.NewInt(0)
	if from < cfg.InitialTimestamp {
		from = cfg.InitialTimestamp
	}
	if to <= from || period == 0 {
		return total
	}
	if cfg.ReductionFactor == nil || cfg.ReductionFactor.Cmp(common.Wad) <= 0 {
		return total.Mul(common.Clone(cfg.InitialRate), new(big.Int).SetUint64(to-from))
	}
	n := (from - cfg.InitialTimestamp) / period
	rate := rateForPeriod(cfg, n)
	for from < to && rate.Sign() > 0 {
		boundary := cfg.InitialTimestamp + (n+1)*period
		end := to
		if boundary < end {
			end = boundary
		}
		total.Add(total, new(big.Int).Mul(rate, new(big.Int).SetUint64(end-from)))
		from = end
		n++
		rate = common.WadDiv(rate, cfg.ReductionFactor)
	}
	return total
}

// InflationRate returns the current emission rate of token per second.
func (c *Controller) InflationRate(token string) (*big.Int, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	cfg, err := c.loadToken(normalizeToken(token))
	if err != nil {
		return nil, err
	}
	params, err := c.params()
	if err != nil {
		return nil, err
	}
	now := c.now()
	if now <= cfg.InitialTimestamp {
		return common.Clone(cfg.InitialRate), nil
	}
	return rateForPeriod(cfg, (now-cfg.InitialTimestamp)/params.ReductionPeriod), nil
}

// UpdateMarketRewards brings every accumulator of market up to now.
func (c *Controller) UpdateMarketRewards(market [20]byte) (err error) {
	finish, err := c.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	return c.updateMarket(market)
}

func (c *Controller) updateMarket(market [20]byte) error {
	ms, err := c.loadMarket(market)
	if err != nil {
		return err
	}
	if len(ms.Tokens) == 0 {
		return nil
	}
	params, err := c.params()
	if err != nil {
		return err
	}
	now := c.now()
	for _, token := range ms.Tokens {
		cfg, err := c.loadToken(token)
		if err != nil {
			return err
		}
		acc, _, err := c.loadAccumulator(market, token)
		if err != nil {
			return err
		}
		if now <= acc.LastUpdated {
			continue
		}
		weight := cfg.WeightFor(market)
		if !cfg.Paused && weight > 0 && ms.TotalSupply.Sign() > 0 {
			integral := emitted(cfg, acc.LastUpdated, now, params.ReductionPeriod)
			weighted := new(big.Int).Mul(integral, new(big.Int).SetUint64(weight))
			denom := new(big.Int).Mul(common.BasisPoints, ms.TotalSupply)
			delta := common.MulDiv(weighted, common.Wad, denom)
			acc.CumulativePerShare.Add(acc.CumulativePerShare, delta)
		}
		acc.LastUpdated = now
		if err := c.state.PutRewardAccumulator(c.namespace, acc); err != nil {
			return err
		}
	}
	return nil
}

func validateAllocation(markets [][20]byte, weights []uint64) error {
	if len(markets) == 0 || len(markets) != len(weights) {
		return ErrMarketsMismatch
	}
	seen := make(map[[20]byte]struct{}, len(markets))
	var sum uint64
	for i, m := range markets {
		if m == ([20]byte{}) {
			return ErrInvalidMarket
		}
		if _, dup := seen[m]; dup {
			return ErrDuplicateMarket
		}
		seen[m] = struct{}{}
		if weights[i] > common.BasisPoints.Uint64() {
			return ErrInvalidWeights
		}
		sum += weights[i]
	}
	if sum != common.BasisPoints.Uint64() {
		return ErrInvalidWeights
	}
	return nil
}

// activate appends token to market after settling it; the token's history
// in that market starts now. Emissions accrued before an earlier removal
// are not paid again.
func (c *Controller) activate(market [20]byte, token string, params *Params) error {
	if err := c.updateMarket(market); err != nil {
		return err
	}
	ms, err := c.loadMarket(market)
	if err != nil {
		return err
	}
	if ms.hasToken(token) {
		return nil
	}
	if uint64(len(ms.Tokens)) >= params.MaxRewardTokens {
		return ErrTooManyRewardTokens
	}
	ms.Tokens = append(ms.Tokens, token)
	if err := c.state.PutRewardMarket(c.namespace, ms); err != nil {
		return err
	}
	acc, _, err := c.loadAccumulator(market, token)
	if err != nil {
		return err
	}
	acc.LastUpdated = c.now()
	acc.ActivationIndex = new(big.Int).Set(acc.CumulativePerShare)
	return c.state.PutRewardAccumulator(c.namespace, acc)
}

func (c *Controller) deactivate(market [20]byte, token string) error {
	if err := c.updateMarket(market); err != nil {
		return err
	}
	ms, err := c.loadMarket(market)
	if err != nil {
		return err
	}
	if !ms.hasToken(token) {
		return nil
	}
	ms.removeToken(token)
	return c.state.PutRewardMarket(c.namespace, ms)
}

func (c *Controller) settleToken(cfg *TokenConfig) error {
	for _, m := range cfg.Markets {
		if err := c.updateMarket(m); err != nil {
			return err
		}
	}
	return nil
}

// AddRewardToken starts emitting token across markets. Only governance may
// call.
func (c *Controller) AddRewardToken(caller [20]byte, token string, initialRate, reductionFactor *big.Int, markets [][20]byte, weights []uint64) (err error) {
	finish, err := c.begin(true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(c.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	token = normalizeToken(token)
	if token == "" {
		return ErrTokenRequired
	}
	if existing, ok, loadErr := c.state.RewardTokenConfig(c.namespace, token); loadErr != nil {
		return fmt.Errorf("rewards: load token: %w", loadErr)
	} else if ok && existing != nil && !existing.Removed {
		return ErrTokenExists
	}
	if initialRate == nil || initialRate.Sign() < 0 {
		return ErrInvalidRate
	}
	if reductionFactor == nil || reductionFactor.Cmp(common.Wad) < 0 {
		return ErrInvalidFactor
	}
	if err = validateAllocation(markets, weights); err != nil {
		return err
	}
	params, err := c.params()
	if err != nil {
		return err
	}
	for _, m := range markets {
		if err = c.activate(m, token, params); err != nil {
			return err
		}
	}
	cfg := &TokenConfig{
		Token:            token,
		InitialRate:      new(big.Int).Set(initialRate),
		ReductionFactor:  new(big.Int).Set(reductionFactor),
		InitialTimestamp: c.now(),
		Markets:          append([][20]byte(nil), markets...),
		Weights:          append([]uint64(nil), weights...),
	}
	if err = c.state.PutRewardTokenConfig(c.namespace, cfg); err != nil {
		return err
	}
	c.emit(events.RewardTokenAdded{
		Distributor:     c.namespace,
		Token:           token,
		InitialRate:     cfg.InitialRate,
		ReductionFactor: cfg.ReductionFactor,
		Markets:         cfg.Markets,
		Weights:         cfg.Weights,
	})
	return nil
}

// RemoveRewardToken stops emissions of token. Rewards already settled to
// users stay claimable.
func (c *Controller) RemoveRewardToken(caller [20]byte, token string) (err error) {
	finish, err := c.begin(true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(c.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	cfg, err := c.loadToken(normalizeToken(token))
	if err != nil {
		return err
	}
	if cfg.Removed {
		return ErrTokenNotFound
	}
	for _, m := range cfg.Markets {
		if err = c.deactivate(m, cfg.Token); err != nil {
			return err
		}
	}
	cfg.Markets = nil
	cfg.Weights = nil
	cfg.Removed = true
	if err = c.state.PutRewardTokenConfig(c.namespace, cfg); err != nil {
		return err
	}
	c.emit(events.RewardTokenRemoved{Distributor: c.namespace, Token: cfg.Token})
	return nil
}

// UpdateRewardWeights reallocates token across markets. Every old and new
// market is settled under the previous weights first.
func (c *Controller) UpdateRewardWeights(caller [20]byte, token string, markets [][20]byte, weights []uint64) (err error) {
	finish, err := c.begin(true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(c.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	cfg, err := c.loadToken(normalizeToken(token))
	if err != nil {
		return err
	}
	if cfg.Removed {
		return ErrTokenNotFound
	}
	if err = validateAllocation(markets, weights); err != nil {
		return err
	}
	params, err := c.params()
	if err != nil {
		return err
	}
	if err = c.settleToken(cfg); err != nil {
		return err
	}
	next := make(map[[20]byte]struct{}, len(markets))
	for _, m := range markets {
		next[m] = struct{}{}
		if err = c.activate(m, cfg.Token, params); err != nil {
			return err
		}
	}
	for _, m := range cfg.Markets {
		if _, keep := next[m]; keep {
			continue
		}
		if err = c.deactivate(m, cfg.Token); err != nil {
			return err
		}
	}
	cfg.Markets = append([][20]byte(nil), markets...)
	cfg.Weights = append([]uint64(nil), weights...)
	if err = c.state.PutRewardTokenConfig(c.namespace, cfg); err != nil {
		return err
	}
	c.emit(events.RewardWeightsUpdated{Distributor: c.namespace, Token: cfg.Token, Markets: cfg.Markets, Weights: cfg.Weights})
	return nil
}

// UpdateInitialInflationRate changes the base emission rate. Periods that
// already elapsed keep decaying the new rate.
func (c *Controller) UpdateInitialInflationRate(caller [20]byte, token string, rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	return c.updateSchedule(caller, token, func(cfg *TokenConfig) {
		cfg.InitialRate = new(big.Int).Set(rate)
	})
}

// UpdateReductionFactor changes the per-period decay divisor.
func (c *Controller) UpdateReductionFactor(caller [20]byte, token string, factor *big.Int) error {
	if factor == nil || factor.Cmp(common.Wad) < 0 {
		return ErrInvalidFactor
	}
	return c.updateSchedule(caller, token, func(cfg *TokenConfig) {
		cfg.ReductionFactor = new(big.Int).Set(factor)
	})
}

func (c *Controller) updateSchedule(caller [20]byte, token string, apply func(*TokenConfig)) (err error) {
	finish, err := c.begin(true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(c.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	cfg, err := c.loadToken(normalizeToken(token))
	if err != nil {
		return err
	}
	if err = c.settleToken(cfg); err != nil {
		return err
	}
	apply(cfg)
	if err = c.state.PutRewardTokenConfig(c.namespace, cfg); err != nil {
		return err
	}
	c.emit(events.RewardRateUpdated{
		Distributor:     c.namespace,
		Token:           cfg.Token,
		InitialRate:     cfg.InitialRate,
		ReductionFactor: cfg.ReductionFactor,
		Timestamp:       c.now(),
	})
	return nil
}

// SetRewardTokenPaused toggles emissions for token. Paused tokens do not
// accrue but their accumulators keep moving forward in time.
func (c *Controller) SetRewardTokenPaused(caller [20]byte, token string, paused bool) (err error) {
	finish, err := c.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(c.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	cfg, err := c.loadToken(normalizeToken(token))
	if err != nil {
		return err
	}
	if err = c.settleToken(cfg); err != nil {
		return err
	}
	cfg.Paused = paused
	if err = c.state.PutRewardTokenConfig(c.namespace, cfg); err != nil {
		return err
	}
	c.emit(events.RewardTokenPaused{Distributor: c.namespace, Token: cfg.Token, Paused: paused})
	return nil
}

// TokenConfig returns the configuration of token.
func (c *Controller) TokenConfig(token string) (*TokenConfig, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	return c.loadToken(normalizeToken(token))
}

// RewardTokens lists the tokens emitting in market.
func (c *Controller) RewardTokens(market [20]byte) ([]string, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	ms, err := c.loadMarket(market)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), ms.Tokens...), nil
}

// AllRewardTokens lists every token ever configured, including removed ones.
func (c *Controller) AllRewardTokens() ([]string, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	return c.state.RewardTokenList(c.namespace)
}

// CumulativeRewardPerShare returns the stored accumulator for a pair.
func (c *Controller) CumulativeRewardPerShare(market [20]byte, token string) (*big.Int, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	acc, _, err := c.loadAccumulator(market, normalizeToken(token))
	if err != nil {
		return nil, err
	}
	return acc.CumulativePerShare, nil
}
