package safety

import (
	"fmt"
	"math/big"

	"safetymodule/core/events"
	"safetymodule/core/types"
	"safetymodule/native/auction"
	"safetymodule/native/common"
	"safetymodule/native/stakepool"
)

const moduleName = "safety"

type engineState interface {
	SafetyParams() (*Params, bool, error)
	PutSafetyParams(p *Params) error
	SafetyPoolAuction(pool [20]byte) (*PoolAuction, bool, error)
	PutSafetyPoolAuction(link *PoolAuction) error
	SafetyAuctionPool(id uint64) ([20]byte, bool, error)
	PutSafetyAuctionPool(id uint64, pool [20]byte) error
	Transfer(symbol string, from, to []byte, amount *big.Int) error
	HasRole(role string, addr []byte) bool
	Snapshot() int
	RevertToSnapshot(id int)
	ReleaseSnapshot(id int)
	AppendEvent(evt *types.Event)
}

// Pools is the slashing surface of the staked-collateral pools.
type Pools interface {
	Pool(addr [20]byte) (*stakepool.Pool, error)
	Slash(caller, pool, destination [20]byte, amount *big.Int) (*big.Int, error)
	ReturnFunds(caller, pool, from [20]byte, amount *big.Int) error
	SettleSlashing(caller, pool [20]byte) error
}

// Auctions is the control surface of the auction engine.
type Auctions interface {
	StartAuction(caller [20]byte, p auction.Params) (uint64, error)
	TerminateAuction(caller [20]byte, id uint64) error
	Account() [20]byte
}

// Engine is the orchestrator: it routes governance slashing decisions into
// auctions and pushes auction results back into the pools.
type Engine struct {
	state    engineState
	pauses   common.PauseView
	pools    Pools
	auctions Auctions
	account  [20]byte
	lock     common.ReentrancyGuard
}

// NewEngine constructs an orchestrator acting as account.
func NewEngine(account [20]byte) *Engine {
	return &Engine{account: account}
}

// SetState wires the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEngines wires the pool and auction engines.
func (e *Engine) SetEngines(pools Pools, auctions Auctions) {
	e.pools = pools
	e.auctions = auctions
}

// Account returns the orchestrator's ledger account.
func (e *Engine) Account() [20]byte { return e.account }

func (e *Engine) emit(evt events.Event) {
	e.state.AppendEvent(evt.Event())
}

func (e *Engine) begin(guarded, locked bool) (func(*error), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.pools == nil || e.auctions == nil {
		return nil, errNotWired
	}
	if guarded {
		if err := common.Guard(e.pauses, moduleName); err != nil {
			return nil, err
		}
	}
	if locked {
		if err := e.lock.Enter(); err != nil {
			return nil, err
		}
	}
	snap := e.state.Snapshot()
	return func(errp *error) {
		if errp != nil && *errp != nil {
			e.state.RevertToSnapshot(snap)
		} else {
			e.state.ReleaseSnapshot(snap)
		}
		if locked {
			e.lock.Exit()
		}
	}, nil
}

func (e *Engine) params() (*Params, error) {
	p, ok, err := e.state.SafetyParams()
	if err != nil {
		return nil, fmt.Errorf("safety: load params: %w", err)
	}
	if !ok || p == nil {
		def := DefaultParams()
		return &def, nil
	}
	return p, nil
}

// SlashAndStartAuction seizes collateral from pool and opens an auction
// selling it. Only governance may call; a pool can have one auction at a
// time.
func (e *Engine) SlashAndStartAuction(caller, pool [20]byte, p SlashParams) (id uint64, err error) {
	finish, err := e.begin(true, true)
	if err != nil {
		return 0, err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return 0, err
	}
	if !common.IsPositive(p.Amount) {
		return 0, ErrZeroAmount
	}
	link, ok, err := e.state.SafetyPoolAuction(pool)
	if err != nil {
		return 0, fmt.Errorf("safety: load pool auction: %w", err)
	}
	if ok && link != nil && link.Active {
		return 0, ErrAuctionInProgress
	}
	record, err := e.pools.Pool(pool)
	if err != nil {
		return 0, err
	}
	params, err := e.params()
	if err != nil {
		return 0, err
	}
	limit := common.MulDiv(record.UnderlyingHeld, new(big.Int).SetUint64(params.MaxPercentUserLoss), common.BasisPoints)
	if p.Amount.Cmp(limit) > 0 {
		return 0, ErrSlashExceedsMaxLoss
	}
	moved, err := e.pools.Slash(e.account, pool, e.account, p.Amount)
	if err != nil {
		return 0, err
	}
	id, err = e.auctions.StartAuction(e.account, auction.Params{
		Token:             record.Underlying,
		PaymentToken:      p.PaymentToken,
		Inventory:         moved,
		NumLots:           p.NumLots,
		LotPrice:          p.LotPrice,
		InitialLotSize:    p.InitialLotSize,
		LotIncrement:      p.LotIncrement,
		LotIncreasePeriod: p.LotIncreasePeriod,
		TimeLimit:         p.TimeLimit,
	})
	if err != nil {
		return 0, err
	}
	if err = e.state.PutSafetyPoolAuction(&PoolAuction{Pool: pool, AuctionID: id, Active: true}); err != nil {
		return 0, err
	}
	if err = e.state.PutSafetyAuctionPool(id, pool); err != nil {
		return 0, err
	}
	e.emit(events.SafetySlashAuction{Pool: pool, AuctionID: id, Amount: moved})
	return id, nil
}

// TerminateAuction ends an auction early. Only governance may call.
func (e *Engine) TerminateAuction(caller [20]byte, id uint64) (err error) {
	finish, err := e.begin(false, true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	return e.auctions.TerminateAuction(e.account, id)
}

// AuctionEnded receives the completion notification of the auction engine.
// Unsold collateral goes back to the pool, which then leaves POST_SLASHING;
// funds raised stay on the orchestrator account.
func (e *Engine) AuctionEnded(caller [20]byte, id uint64, tokensSold, fundsRaised, remaining *big.Int, terminatedEarly bool) (err error) {
	finish, err := e.begin(false, false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireCaller(e.auctions.Account(), caller, "auction engine"); err != nil {
		return err
	}
	pool, ok, err := e.state.SafetyAuctionPool(id)
	if err != nil {
		return fmt.Errorf("safety: load auction pool: %w", err)
	}
	if !ok {
		return ErrUnknownAuction
	}
	if common.IsPositive(remaining) {
		if err = e.pools.ReturnFunds(e.account, pool, e.account, remaining); err != nil {
			return err
		}
	}
	if err = e.pools.SettleSlashing(e.account, pool); err != nil {
		return err
	}
	if err = e.state.PutSafetyPoolAuction(&PoolAuction{Pool: pool, AuctionID: id, Active: false}); err != nil {
		return err
	}
	e.emit(events.SafetyAuctionSettled{
		Pool:            pool,
		AuctionID:       id,
		Returned:        common.Clone(remaining),
		FundsRaised:     common.Clone(fundsRaised),
		TerminatedEarly: terminatedEarly,
	})
	return nil
}

// WithdrawFundsRaised moves auction proceeds held by the orchestrator.
func (e *Engine) WithdrawFundsRaised(caller, to [20]byte, token string, amount *big.Int) (err error) {
	finish, err := e.begin(false, true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	if !common.IsPositive(amount) {
		return ErrZeroAmount
	}
	if err = e.state.Transfer(token, e.account[:], to[:], amount); err != nil {
		return err
	}
	e.emit(events.SafetyFundsWithdrawn{To: to, Token: token, Amount: amount})
	return nil
}

// ReturnFunds deposits collateral, typically yield, from `from` into pool.
func (e *Engine) ReturnFunds(caller, pool, from [20]byte, amount *big.Int) (err error) {
	finish, err := e.begin(false, true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	return e.pools.ReturnFunds(e.account, pool, from, amount)
}

// SetMaxPercentUserLoss updates the slash cap in basis points.
func (e *Engine) SetMaxPercentUserLoss(caller [20]byte, bps uint64) (err error) {
	finish, err := e.begin(false, true)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	if bps == 0 || bps > common.BasisPoints.Uint64() {
		return ErrInvalidMaxLoss
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	params.MaxPercentUserLoss = bps
	if err = e.state.PutSafetyParams(params); err != nil {
		return err
	}
	e.emit(events.SafetyMaxLossUpdated{Bps: bps})
	return nil
}

// Params returns the active orchestrator configuration.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.params()
}

// PoolAuction returns the latest auction linked to pool.
func (e *Engine) PoolAuction(pool [20]byte) (*PoolAuction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.SafetyPoolAuction(pool)
}
