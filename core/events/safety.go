package events

import (
	"math/big"

	"safetymodule/core/types"
)

const (
	// TypeSafetySlashAuction is emitted when a pool is slashed into an auction.
	TypeSafetySlashAuction = "safety.slashAuction"
	// TypeSafetyAuctionSettled records the disposition of auction proceeds.
	TypeSafetyAuctionSettled = "safety.auctionSettled"
	// TypeSafetyFundsWithdrawn records governance withdrawing raised funds.
	TypeSafetyFundsWithdrawn = "safety.fundsWithdrawn"
	// TypeSafetyMaxLossUpdated records a change to the slashing cap.
	TypeSafetyMaxLossUpdated = "safety.maxLossUpdated"
)

// SafetySlashAuction links a slash to the auction liquidating it.
type SafetySlashAuction struct {
	Pool      [20]byte
	AuctionID uint64
	Amount    *big.Int
}

// EventType satisfies the Event interface.
func (SafetySlashAuction) EventType() string { return TypeSafetySlashAuction }

// Event converts the payload into a broadcastable event.
func (e SafetySlashAuction) Event() *types.Event {
	return &types.Event{Type: TypeSafetySlashAuction, Attributes: map[string]string{
		"pool":      marketString(e.Pool),
		"auctionId": formatUint(e.AuctionID),
		"amount":    formatAmount(e.Amount),
	}}
}

// SafetyAuctionSettled records unsold collateral returned to the pool.
type SafetyAuctionSettled struct {
	Pool            [20]byte
	AuctionID       uint64
	Returned        *big.Int
	FundsRaised     *big.Int
	TerminatedEarly bool
}

// EventType satisfies the Event interface.
func (SafetyAuctionSettled) EventType() string { return TypeSafetyAuctionSettled }

// Event converts the payload into a broadcastable event.
func (e SafetyAuctionSettled) Event() *types.Event {
	return &types.Event{Type: TypeSafetyAuctionSettled, Attributes: map[string]string{
		"pool":            marketString(e.Pool),
		"auctionId":       formatUint(e.AuctionID),
		"returned":        formatAmount(e.Returned),
		"fundsRaised":     formatAmount(e.FundsRaised),
		"terminatedEarly": formatBool(e.TerminatedEarly),
	}}
}

// SafetyFundsWithdrawn records a governance withdrawal of auction proceeds.
type SafetyFundsWithdrawn struct {
	To     [20]byte
	Token  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (SafetyFundsWithdrawn) EventType() string { return TypeSafetyFundsWithdrawn }

// Event converts the payload into a broadcastable event.
func (e SafetyFundsWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		"token":  normalizeAsset(e.Token),
		"amount": formatAmount(e.Amount),
	}
	if !zeroAddress(e.To) {
		attrs["to"] = accountString(e.To)
	}
	return &types.Event{Type: TypeSafetyFundsWithdrawn, Attributes: attrs}
}

// SafetyMaxLossUpdated records the new slashing cap in basis points.
type SafetyMaxLossUpdated struct {
	Bps uint64
}

// EventType satisfies the Event interface.
func (SafetyMaxLossUpdated) EventType() string { return TypeSafetyMaxLossUpdated }

// Event converts the payload into a broadcastable event.
func (e SafetyMaxLossUpdated) Event() *types.Event {
	return &types.Event{Type: TypeSafetyMaxLossUpdated, Attributes: map[string]string{
		"maxPercentUserLoss": formatUint(e.Bps),
	}}
}
