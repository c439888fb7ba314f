package events

import (
	"math/big"

	"safetymodule/core/types"
)

const (
	// TypeAuctionStarted is emitted when a liquidation auction opens.
	TypeAuctionStarted = "auction.started"
	// TypeAuctionLotsBought captures a purchase of one or more lots.
	TypeAuctionLotsBought = "auction.lotsBought"
	// TypeAuctionEnded is emitted exactly once when an auction leaves Active.
	TypeAuctionEnded = "auction.ended"
)

// AuctionStarted records the schedule of a new auction.
type AuctionStarted struct {
	ID                uint64
	Token             string
	PaymentToken      string
	Inventory         *big.Int
	NumLots           uint64
	LotPrice          *big.Int
	InitialLotSize    *big.Int
	LotIncrement      *big.Int
	LotIncreasePeriod uint64
	EndTime           uint64
}

// EventType satisfies the Event interface.
func (AuctionStarted) EventType() string { return TypeAuctionStarted }

// Event converts the payload into a broadcastable event.
func (e AuctionStarted) Event() *types.Event {
	return &types.Event{Type: TypeAuctionStarted, Attributes: map[string]string{
		"id":             formatUint(e.ID),
		"token":          normalizeAsset(e.Token),
		"paymentToken":   normalizeAsset(e.PaymentToken),
		"inventory":      formatAmount(e.Inventory),
		"numLots":        formatUint(e.NumLots),
		"lotPrice":       formatAmount(e.LotPrice),
		"initialLotSize": formatAmount(e.InitialLotSize),
		"lotIncrement":   formatAmount(e.LotIncrement),
		"lotPeriod":      formatUint(e.LotIncreasePeriod),
		"endTime":        formatUint(e.EndTime),
	}}
}

// AuctionLotsBought records a purchase.
type AuctionLotsBought struct {
	ID            uint64
	Buyer         [20]byte
	Lots          uint64
	LotSize       *big.Int
	Cost          *big.Int
	RemainingLots uint64
}

// EventType satisfies the Event interface.
func (AuctionLotsBought) EventType() string { return TypeAuctionLotsBought }

// Event converts the payload into a broadcastable event.
func (e AuctionLotsBought) Event() *types.Event {
	return &types.Event{Type: TypeAuctionLotsBought, Attributes: map[string]string{
		"id":            formatUint(e.ID),
		"buyer":         accountString(e.Buyer),
		"lots":          formatUint(e.Lots),
		"lotSize":       formatAmount(e.LotSize),
		"cost":          formatAmount(e.Cost),
		"remainingLots": formatUint(e.RemainingLots),
	}}
}

// AuctionEnded records the terminal state and proceeds of an auction.
type AuctionEnded struct {
	ID              uint64
	Status          string
	TokensSold      *big.Int
	FundsRaised     *big.Int
	Remaining       *big.Int
	TerminatedEarly bool
}

// EventType satisfies the Event interface.
func (AuctionEnded) EventType() string { return TypeAuctionEnded }

// Event converts the payload into a broadcastable event.
func (e AuctionEnded) Event() *types.Event {
	return &types.Event{Type: TypeAuctionEnded, Attributes: map[string]string{
		"id":              formatUint(e.ID),
		"status":          e.Status,
		"tokensSold":      formatAmount(e.TokensSold),
		"fundsRaised":     formatAmount(e.FundsRaised),
		"remaining":       formatAmount(e.Remaining),
		"terminatedEarly": formatBool(e.TerminatedEarly),
	}}
}
