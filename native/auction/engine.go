package auction

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"safetymodule/core/events"
	"safetymodule/core/types"
	"safetymodule/native/common"
)

const moduleName = "auction"

type engineState interface {
	Auction(id uint64) (*Auction, bool, error)
	PutAuction(a *Auction) error
	AuctionNextID() (uint64, error)
	PutAuctionNextID(id uint64) error
	Transfer(symbol string, from, to []byte, amount *big.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
	ReleaseSnapshot(id int)
	AppendEvent(evt *types.Event)
}

// Engine runs fixed-price, growing-lot liquidation auctions on behalf of the
// orchestrator. Inventory and proceeds sit on the engine account until an
// auction ends.
type Engine struct {
	state        engineState
	pauses       common.PauseView
	clock        common.Clock
	account      [20]byte
	orchestrator [20]byte
	handler      CompletionHandler
	lock         common.ReentrancyGuard
}

// NewEngine constructs an auction engine holding funds on account.
func NewEngine(account [20]byte) *Engine {
	return &Engine{account: account, clock: common.SystemClock{}}
}

// SetState wires the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause view consulted by purchases.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetClock overrides the timestamp source.
func (e *Engine) SetClock(c common.Clock) {
	if c != nil {
		e.clock = c
	}
}

// SetOrchestrator configures the account allowed to start and terminate
// auctions and the handler notified on completion.
func (e *Engine) SetOrchestrator(addr [20]byte, handler CompletionHandler) {
	e.orchestrator = addr
	e.handler = handler
}

// Account returns the ledger account holding inventory and proceeds.
func (e *Engine) Account() [20]byte { return e.account }

func (e *Engine) now() uint64 { return e.clock.Now() }

func (e *Engine) emit(evt events.Event) {
	e.state.AppendEvent(evt.Event())
}

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

func (e *Engine) load(id uint64) (*Auction, error) {
	a, ok, err := e.state.Auction(id)
	if err != nil {
		return nil, fmt.Errorf("auction: load: %w", err)
	}
	if !ok || a == nil {
		return nil, ErrAuctionNotFound
	}
	a.ensureDefaults()
	return a, nil
}

// StartAuction opens an auction, pulling the inventory from the caller. Only
// the orchestrator may call. It returns the new auction id.
func (e *Engine) StartAuction(caller [20]byte, p Params) (id uint64, err error) {
	finish, err := e.begin(false)
	if err != nil {
		return 0, err
	}
	defer finish(&err)
	if err = common.RequireCaller(e.orchestrator, caller, "orchestrator"); err != nil {
		return 0, err
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	payment := strings.ToUpper(strings.TrimSpace(p.PaymentToken))
	if token == "" || payment == "" {
		return 0, ErrTokenRequired
	}
	if p.NumLots == 0 || !common.IsPositive(p.LotPrice) || !common.IsPositive(p.InitialLotSize) {
		return 0, ErrInvalidParams
	}
	if !common.IsPositive(p.Inventory) {
		return 0, ErrNoInventory
	}
	now := e.now()
	if p.TimeLimit == 0 || p.TimeLimit > math.MaxUint64-now {
		return 0, ErrInvalidParams
	}
	id, err = e.state.AuctionNextID()
	if err != nil {
		return 0, err
	}
	a := &Auction{
		ID:                id,
		Token:             token,
		PaymentToken:      payment,
		LotPrice:          new(big.Int).Set(p.LotPrice),
		InitialLotSize:    new(big.Int).Set(p.InitialLotSize),
		LotIncrement:      common.Clone(p.LotIncrement),
		LotIncreasePeriod: p.LotIncreasePeriod,
		NumLots:           p.NumLots,
		RemainingLots:     p.NumLots,
		Inventory:         new(big.Int).Set(p.Inventory),
		TokensSold:        big.NewInt(0),
		FundsRaised:       big.NewInt(0),
		StartTime:         now,
		EndTime:           now + p.TimeLimit,
		Status:            StatusActive,
	}
	if err = e.state.PutAuctionNextID(id + 1); err != nil {
		return 0, err
	}
	if err = e.state.PutAuction(a); err != nil {
		return 0, err
	}
	if err = e.state.Transfer(token, caller[:], e.account[:], a.Inventory); err != nil {
		return 0, err
	}
	e.emit(events.AuctionStarted{
		ID:                id,
		Token:             token,
		PaymentToken:      payment,
		Inventory:         a.Inventory,
		NumLots:           a.NumLots,
		LotPrice:          a.LotPrice,
		InitialLotSize:    a.InitialLotSize,
		LotIncrement:      a.LotIncrement,
		LotIncreasePeriod: a.LotIncreasePeriod,
		EndTime:           a.EndTime,
	})
	return id, nil
}

// BuyLots purchases n lots at the current lot size for lotPrice each. It
// returns the amount of auctioned tokens delivered.
func (e *Engine) BuyLots(id uint64, buyer [20]byte, n uint64) (delivered *big.Int, err error) {
	finish, err := e.begin(true)
	if err != nil {
		return nil, err
	}
	defer finish(&err)
	a, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusActive {
		return nil, ErrAuctionInactive
	}
	now := e.now()
	if now > a.EndTime {
		return nil, common.NewTimingError(ErrAuctionExpired, a.EndTime)
	}
	if n == 0 {
		return nil, ErrZeroLots
	}
	if n > a.RemainingLots {
		return nil, ErrNotEnoughLots
	}
	lotSize := a.LotSizeAt(now)
	if lotSize.Sign() == 0 {
		return nil, ErrEmptyLot
	}
	lots := new(big.Int).SetUint64(n)
	cost := new(big.Int).Mul(a.LotPrice, lots)
	delivered = new(big.Int).Mul(lotSize, lots)

	a.RemainingLots -= n
	a.Inventory.Sub(a.Inventory, delivered)
	a.TokensSold.Add(a.TokensSold, delivered)
	a.FundsRaised.Add(a.FundsRaised, cost)
	if err = e.state.PutAuction(a); err != nil {
		return nil, err
	}
	if err = e.state.Transfer(a.PaymentToken, buyer[:], e.account[:], cost); err != nil {
		return nil, err
	}
	if err = e.state.Transfer(a.Token, e.account[:], buyer[:], delivered); err != nil {
		return nil, err
	}
	e.emit(events.AuctionLotsBought{ID: id, Buyer: buyer, Lots: n, LotSize: lotSize, Cost: cost, RemainingLots: a.RemainingLots})
	if a.RemainingLots == 0 {
		if err = e.complete(a, StatusSoldOut); err != nil {
			return nil, err
		}
	}
	return delivered, nil
}

// CompleteAuction finalizes an auction whose time limit passed. Anyone may
// call.
func (e *Engine) CompleteAuction(id uint64) (err error) {
	finish, err := e.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	a, err := e.load(id)
	if err != nil {
		return err
	}
	if a.Status != StatusActive {
		return ErrAuctionInactive
	}
	if e.now() <= a.EndTime {
		return ErrAuctionNotExpired
	}
	return e.complete(a, StatusTimedOut)
}

// TerminateAuction ends an auction early. Only the orchestrator may call.
func (e *Engine) TerminateAuction(caller [20]byte, id uint64) (err error) {
	finish, err := e.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireCaller(e.orchestrator, caller, "orchestrator"); err != nil {
		return err
	}
	a, err := e.load(id)
	if err != nil {
		return err
	}
	if a.Status != StatusActive {
		return ErrAuctionInactive
	}
	return e.complete(a, StatusTerminated)
}

func (e *Engine) complete(a *Auction, status Status) error {
	remaining := new(big.Int).Set(a.Inventory)
	a.Status = status
	a.Inventory = big.NewInt(0)
	if err := e.state.PutAuction(a); err != nil {
		return err
	}
	if remaining.Sign() > 0 {
		if err := e.state.Transfer(a.Token, e.account[:], e.orchestrator[:], remaining); err != nil {
			return err
		}
	}
	if a.FundsRaised.Sign() > 0 {
		if err := e.state.Transfer(a.PaymentToken, e.account[:], e.orchestrator[:], a.FundsRaised); err != nil {
			return err
		}
	}
	early := status == StatusTerminated
	e.emit(events.AuctionEnded{
		ID:              a.ID,
		Status:          status.String(),
		TokensSold:      a.TokensSold,
		FundsRaised:     a.FundsRaised,
		Remaining:       remaining,
		TerminatedEarly: early,
	})
	if e.handler == nil {
		return nil
	}
	return e.handler.AuctionEnded(e.account, a.ID, common.Clone(a.TokensSold), common.Clone(a.FundsRaised), remaining, early)
}
