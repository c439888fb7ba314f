package stakepool

import (
	"fmt"
	"math/big"

	"safetymodule/core/events"
	"safetymodule/core/types"
	"safetymodule/native/common"
)

const moduleName = "stakepool"

// RewardHook settles reward accrual around share balance changes. Accrue is
// invoked before the balance moves and Update after it.
type RewardHook interface {
	AccrueRewards(market, user [20]byte) error
	UpdatePosition(market, user [20]byte) error
}

type engineState interface {
	StakePool(addr [20]byte) (*Pool, bool, error)
	PutStakePool(pool *Pool) error
	StakePoolList() ([][20]byte, error)
	StakeHolder(pool, holder [20]byte) (*Holder, error)
	PutStakeHolder(pool, holder [20]byte, h *Holder) error
	Transfer(symbol string, from, to []byte, amount *big.Int) error
	HasRole(role string, addr []byte) bool
	Snapshot() int
	RevertToSnapshot(id int)
	ReleaseSnapshot(id int)
	AppendEvent(evt *types.Event)
}

// Engine implements the staked-collateral pools: the exchange-rate ledger,
// the per-holder cooldown machine and the slashing lifecycle driven by the
// orchestrator.
type Engine struct {
	state        engineState
	pauses       common.PauseView
	clock        common.Clock
	rewards      RewardHook
	orchestrator [20]byte
	lock         common.ReentrancyGuard
}

// NewEngine constructs a pool engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{clock: common.SystemClock{}}
}

// SetState wires the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause view consulted by user operations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetClock overrides the timestamp source.
func (e *Engine) SetClock(c common.Clock) {
	if c != nil {
		e.clock = c
	}
}

// SetRewardHook wires the reward distributor settling pool markets.
func (e *Engine) SetRewardHook(h RewardHook) { e.rewards = h }

// SetOrchestrator configures the only account allowed to slash, return funds
// and settle.
func (e *Engine) SetOrchestrator(addr [20]byte) { e.orchestrator = addr }

func (e *Engine) now() uint64 { return e.clock.Now() }

func (e *Engine) emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.state.AppendEvent(evt.Event())
}

func (e *Engine) loadPool(addr [20]byte) (*Pool, error) {
	pool, ok, err := e.state.StakePool(addr)
	if err != nil {
		return nil, fmt.Errorf("stakepool: load pool: %w", err)
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	pool.ensureDefaults()
	return pool, nil
}

func (e *Engine) loadHolder(pool, holder [20]byte) (*Holder, error) {
	h, err := e.state.StakeHolder(pool, holder)
	if err != nil {
		return nil, fmt.Errorf("stakepool: load holder: %w", err)
	}
	if h == nil {
		h = &Holder{}
	}
	h.ensureDefaults()
	return h, nil
}

func (e *Engine) accrue(pool, user [20]byte) error {
	if e.rewards == nil {
		return nil
	}
	return e.rewards.AccrueRewards(pool, user)
}

func (e *Engine) refresh(pool, user [20]byte) error {
	if e.rewards == nil {
		return nil
	}
	return e.rewards.UpdatePosition(pool, user)
}

// begin runs the shared prologue of every mutating call and returns the
// function that must be deferred to finish it.
func (e *Engine) begin(guarded bool) (func(*error), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if guarded {
		if err := common.Guard(e.pauses, moduleName); err != nil {
			return nil, err
		}
	}
	if err := e.lock.Enter(); err != nil {
		return nil, err
	}
	snap := e.state.Snapshot()
	return func(errp *error) {
		if errp != nil && *errp != nil {
			e.state.RevertToSnapshot(snap)
		} else {
			e.state.ReleaseSnapshot(snap)
		}
		e.lock.Exit()
	}, nil
}

// RegisterPool creates a new pool at parity. Only governance may call.
func (e *Engine) RegisterPool(caller [20]byte, cfg PoolConfig) (err error) {
	finish, err := e.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	if cfg.Address == ([20]byte{}) || cfg.Underlying == "" {
		return ErrInvalidPool
	}
	if cfg.MaxStakeAmount != nil && cfg.MaxStakeAmount.Sign() < 0 {
		return ErrInvalidPool
	}
	if _, ok, loadErr := e.state.StakePool(cfg.Address); loadErr != nil {
		return fmt.Errorf("stakepool: load pool: %w", loadErr)
	} else if ok {
		return ErrPoolExists
	}
	pool := &Pool{
		Address:         cfg.Address,
		Underlying:      cfg.Underlying,
		CooldownSeconds: cfg.CooldownSeconds,
		UnstakeWindow:   cfg.UnstakeWindow,
		MaxStakeAmount:  common.Clone(cfg.MaxStakeAmount),
	}
	pool.ensureDefaults()
	if err = e.state.PutStakePool(pool); err != nil {
		return err
	}
	e.emit(events.StakePoolRegistered{
		Pool:            pool.Address,
		Underlying:      pool.Underlying,
		CooldownSeconds: pool.CooldownSeconds,
		UnstakeWindow:   pool.UnstakeWindow,
		MaxStakeAmount:  pool.MaxStakeAmount,
	})
	return nil
}

// Stake deposits amount of underlying from `from` and mints shares to `to` at
// the current exchange rate, rounding in the pool's favour.
func (e *Engine) Stake(poolAddr, from, to [20]byte, amount *big.Int) (minted *big.Int, err error) {
	finish, err := e.begin(true)
	if err != nil {
		return nil, err
	}
	defer finish(&err)
	if !common.IsPositive(amount) {
		return nil, ErrZeroAmount
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	if pool.PostSlashing {
		return nil, ErrPostSlashing
	}
	if pool.ExchangeRate.Sign() == 0 {
		return nil, ErrZeroExchangeRate
	}
	shares := common.MulDiv(amount, common.Wad, pool.ExchangeRate)
	if shares.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	receiver, err := e.loadHolder(poolAddr, to)
	if err != nil {
		return nil, err
	}
	next := new(big.Int).Add(receiver.Shares, shares)
	if pool.MaxStakeAmount.Sign() > 0 && next.Cmp(pool.MaxStakeAmount) > 0 {
		return nil, ErrStakeCapExceeded
	}
	if err = e.accrue(poolAddr, to); err != nil {
		return nil, err
	}
	if err = e.state.Transfer(pool.Underlying, from[:], poolAddr[:], amount); err != nil {
		return nil, err
	}
	receiver.CooldownStart = nextCooldown(pool, 0, receiver.CooldownStart, shares, receiver.Shares, e.now())
	receiver.Shares = next
	pool.TotalShares.Add(pool.TotalShares, shares)
	pool.UnderlyingHeld.Add(pool.UnderlyingHeld, amount)
	if err = e.state.PutStakeHolder(poolAddr, to, receiver); err != nil {
		return nil, err
	}
	if err = e.state.PutStakePool(pool); err != nil {
		return nil, err
	}
	if err = e.refresh(poolAddr, to); err != nil {
		return nil, err
	}
	e.emit(events.StakePoolStaked{Pool: poolAddr, From: from, To: to, Amount: amount, Shares: shares, ExchangeRate: pool.ExchangeRate})
	return shares, nil
}

// Redeem burns shares held by `from` and pays the underlying to `to`. While
// RUNNING the holder must be inside the unstake window that opens once the
// cooldown elapses; POST_SLASHING waives the requirement.
func (e *Engine) Redeem(poolAddr, from, to [20]byte, shares *big.Int) (paid *big.Int, err error) {
	finish, err := e.begin(true)
	if err != nil {
		return nil, err
	}
	defer finish(&err)
	if !common.IsPositive(shares) {
		return nil, ErrZeroAmount
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	holder, err := e.loadHolder(poolAddr, from)
	if err != nil {
		return nil, err
	}
	if holder.Shares.Cmp(shares) < 0 {
		return nil, ErrInsufficientShares
	}
	if !pool.PostSlashing {
		if err = checkUnstakeWindow(pool, holder, e.now()); err != nil {
			return nil, err
		}
	}
	amount := common.MulDiv(shares, pool.ExchangeRate, common.Wad)
	if amount.Cmp(pool.UnderlyingHeld) > 0 {
		amount = new(big.Int).Set(pool.UnderlyingHeld)
	}
	if err = e.accrue(poolAddr, from); err != nil {
		return nil, err
	}
	holder.Shares.Sub(holder.Shares, shares)
	if holder.Shares.Sign() == 0 {
		holder.CooldownStart = 0
	}
	pool.TotalShares.Sub(pool.TotalShares, shares)
	pool.UnderlyingHeld.Sub(pool.UnderlyingHeld, amount)
	if err = e.state.PutStakeHolder(poolAddr, from, holder); err != nil {
		return nil, err
	}
	if err = e.state.PutStakePool(pool); err != nil {
		return nil, err
	}
	if err = e.refresh(poolAddr, from); err != nil {
		return nil, err
	}
	if err = e.state.Transfer(pool.Underlying, poolAddr[:], to[:], amount); err != nil {
		return nil, err
	}
	e.emit(events.StakePoolRedeemed{
		Pool:         poolAddr,
		From:         from,
		To:           to,
		Shares:       shares,
		Amount:       amount,
		ExchangeRate: pool.ExchangeRate,
		PostSlashing: pool.PostSlashing,
	})
	return amount, nil
}

func checkUnstakeWindow(pool *Pool, holder *Holder, now uint64) error {
	if holder.CooldownStart == 0 {
		return common.NewTimingError(ErrCooldownNotStarted, 0)
	}
	opens := holder.CooldownStart + pool.CooldownSeconds
	if now < opens {
		return common.NewTimingError(ErrCooldownActive, opens)
	}
	closes := opens + pool.UnstakeWindow
	if now > closes {
		return common.NewTimingError(ErrUnstakeWindowExpired, closes)
	}
	return nil
}

// Cooldown starts the caller's cooldown at the current timestamp.
func (e *Engine) Cooldown(poolAddr, caller [20]byte) (err error) {
	finish, err := e.begin(true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if _, err = e.loadPool(poolAddr); err != nil {
		return err
	}
	holder, err := e.loadHolder(poolAddr, caller)
	if err != nil {
		return err
	}
	if holder.Shares.Sign() == 0 {
		return ErrZeroBalance
	}
	holder.CooldownStart = e.now()
	if err = e.state.PutStakeHolder(poolAddr, caller, holder); err != nil {
		return err
	}
	e.emit(events.StakePoolCooldown{Pool: poolAddr, Holder: caller, Start: holder.CooldownStart})
	return nil
}

// Transfer moves shares between holders, settling rewards for both sides and
// blending the receiver's cooldown.
func (e *Engine) Transfer(poolAddr, from, to [20]byte, shares *big.Int) (err error) {
	finish, err := e.begin(true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if !common.IsPositive(shares) {
		return ErrZeroAmount
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	sender, err := e.loadHolder(poolAddr, from)
	if err != nil {
		return err
	}
	if sender.Shares.Cmp(shares) < 0 {
		return ErrInsufficientShares
	}
	if from == to {
		return nil
	}
	receiver, err := e.loadHolder(poolAddr, to)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(receiver.Shares, shares)
	if pool.MaxStakeAmount.Sign() > 0 && next.Cmp(pool.MaxStakeAmount) > 0 {
		return ErrStakeCapExceeded
	}
	if err = e.accrue(poolAddr, from); err != nil {
		return err
	}
	if err = e.accrue(poolAddr, to); err != nil {
		return err
	}
	now := e.now()
	receiver.CooldownStart = nextCooldown(pool, sender.CooldownStart, receiver.CooldownStart, shares, receiver.Shares, now)
	receiver.Shares = next
	sender.Shares.Sub(sender.Shares, shares)
	if sender.Shares.Sign() == 0 {
		sender.CooldownStart = 0
	}
	if err = e.state.PutStakeHolder(poolAddr, from, sender); err != nil {
		return err
	}
	if err = e.state.PutStakeHolder(poolAddr, to, receiver); err != nil {
		return err
	}
	if err = e.refresh(poolAddr, from); err != nil {
		return err
	}
	if err = e.refresh(poolAddr, to); err != nil {
		return err
	}
	e.emit(events.StakePoolTransfer{Pool: poolAddr, From: from, To: to, Shares: shares, ReceiverCooldown: receiver.CooldownStart})
	return nil
}

// Slash moves up to amount of underlying to destination, marks the pool
// POST_SLASHING and lowers the exchange rate. It returns the amount moved.
func (e *Engine) Slash(caller, poolAddr, destination [20]byte, amount *big.Int) (moved *big.Int, err error) {
	finish, err := e.begin(false)
	if err != nil {
		return nil, err
	}
	defer finish(&err)
	if err = common.RequireCaller(e.orchestrator, caller, "orchestrator"); err != nil {
		return nil, err
	}
	if !common.IsPositive(amount) {
		return nil, ErrZeroAmount
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	if pool.PostSlashing {
		return nil, ErrPostSlashing
	}
	moved = common.Min(amount, pool.UnderlyingHeld)
	pool.UnderlyingHeld.Sub(pool.UnderlyingHeld, moved)
	if pool.TotalShares.Sign() > 0 {
		rate := common.MulDiv(pool.UnderlyingHeld, common.Wad, pool.TotalShares)
		if rate.Cmp(pool.ExchangeRate) < 0 {
			pool.ExchangeRate = rate
		}
	}
	pool.PostSlashing = true
	if err = e.state.PutStakePool(pool); err != nil {
		return nil, err
	}
	if err = e.state.Transfer(pool.Underlying, poolAddr[:], destination[:], moved); err != nil {
		return nil, err
	}
	e.emit(events.StakePoolSlashed{Pool: poolAddr, Destination: destination, Amount: moved, ExchangeRate: pool.ExchangeRate})
	return moved, nil
}

// ReturnFunds pulls amount of underlying from `from` into the pool and raises
// the exchange rate accordingly. An empty pool resets to parity.
func (e *Engine) ReturnFunds(caller, poolAddr, from [20]byte, amount *big.Int) (err error) {
	finish, err := e.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireCaller(e.orchestrator, caller, "orchestrator"); err != nil {
		return err
	}
	if !common.IsPositive(amount) {
		return ErrZeroAmount
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	if err = e.state.Transfer(pool.Underlying, from[:], poolAddr[:], amount); err != nil {
		return err
	}
	pool.UnderlyingHeld.Add(pool.UnderlyingHeld, amount)
	if pool.TotalShares.Sign() == 0 {
		pool.ExchangeRate = new(big.Int).Set(common.Wad)
	} else {
		rate := common.MulDiv(pool.UnderlyingHeld, common.Wad, pool.TotalShares)
		if rate.Cmp(pool.ExchangeRate) > 0 {
			pool.ExchangeRate = rate
		}
	}
	if err = e.state.PutStakePool(pool); err != nil {
		return err
	}
	e.emit(events.StakePoolFundsReturned{Pool: poolAddr, From: from, Amount: amount, ExchangeRate: pool.ExchangeRate})
	return nil
}

// SettleSlashing returns the pool to RUNNING.
func (e *Engine) SettleSlashing(caller, poolAddr [20]byte) (err error) {
	finish, err := e.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireCaller(e.orchestrator, caller, "orchestrator"); err != nil {
		return err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	if !pool.PostSlashing {
		return ErrNotPostSlashing
	}
	pool.PostSlashing = false
	if err = e.state.PutStakePool(pool); err != nil {
		return err
	}
	e.emit(events.StakePoolSettled{Pool: poolAddr})
	return nil
}

func eventsParamUpdated(pool [20]byte, param, value string) events.StakePoolParamUpdated {
	return events.StakePoolParamUpdated{Pool: pool, Param: param, Value: value}
}
