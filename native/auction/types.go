package auction

import (
	"math/big"

	"safetymodule/native/common"
)

// Status is the lifecycle position of an auction.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusSoldOut
	StatusTimedOut
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusActive:
		return "Active"
	case StatusSoldOut:
		return "SoldOut"
	case StatusTimedOut:
		return "TimedOut"
	case StatusTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is final.
func (s Status) Terminal() bool {
	return s == StatusSoldOut || s == StatusTimedOut || s == StatusTerminated
}

// Auction is a fixed-price liquidation whose lot size grows over time until
// capped by the remaining inventory.
type Auction struct {
	ID           uint64
	Token        string
	PaymentToken string
	// LotPrice is the cost of one lot in payment token units.
	LotPrice          *big.Int
	InitialLotSize    *big.Int
	LotIncrement      *big.Int
	LotIncreasePeriod uint64
	NumLots           uint64
	RemainingLots     uint64
	// Inventory is the unsold token balance held for this auction.
	Inventory   *big.Int
	TokensSold  *big.Int
	FundsRaised *big.Int
	StartTime   uint64
	EndTime     uint64
	Status      Status
}

func (a *Auction) ensureDefaults() {
	for _, v := range []**big.Int{&a.LotPrice, &a.InitialLotSize, &a.LotIncrement, &a.Inventory, &a.TokensSold, &a.FundsRaised} {
		if *v == nil {
			*v = big.NewInt(0)
		}
	}
}

// StatusAt resolves the status at now; an active auction past its end time
// reads as timed out even before anyone completes it.
func (a *Auction) StatusAt(now uint64) Status {
	if a.Status == StatusActive && now > a.EndTime {
		return StatusTimedOut
	}
	return a.Status
}

// LotSizeAt returns min(initial + periods*increment, inventory/remainingLots).
func (a *Auction) LotSizeAt(now uint64) *big.Int {
	if a.RemainingLots == 0 {
		return big.NewInt(0)
	}
	grown := common.Clone(a.InitialLotSize)
	if a.LotIncreasePeriod > 0 && now > a.StartTime {
		periods := new(big.Int).SetUint64((now - a.StartTime) / a.LotIncreasePeriod)
		grown.Add(grown, periods.Mul(periods, common.Clone(a.LotIncrement)))
	}
	capped := new(big.Int).Quo(common.Clone(a.Inventory), new(big.Int).SetUint64(a.RemainingLots))
	return common.Min(grown, capped)
}

// Params describes a new auction.
type Params struct {
	Token             string
	PaymentToken      string
	Inventory         *big.Int
	NumLots           uint64
	LotPrice          *big.Int
	InitialLotSize    *big.Int
	LotIncrement      *big.Int
	LotIncreasePeriod uint64
	TimeLimit         uint64
}

// CompletionHandler is notified exactly once when an auction leaves Active.
// Unsold inventory and funds raised have already been moved to the
// orchestrator account when it runs.
type CompletionHandler interface {
	AuctionEnded(caller [20]byte, id uint64, tokensSold, fundsRaised, remaining *big.Int, terminatedEarly bool) error
}
