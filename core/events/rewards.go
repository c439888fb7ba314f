package events

import (
	"math/big"
	"strconv"
	"strings"

	"safetymodule/core/types"
)

const (
	// TypeRewardTokenAdded is emitted when a reward token starts emitting.
	TypeRewardTokenAdded = "rewards.tokenAdded"
	// TypeRewardTokenRemoved is emitted when a reward token is retired.
	TypeRewardTokenRemoved = "rewards.tokenRemoved"
	// TypeRewardWeightsUpdated captures a new market weight allocation.
	TypeRewardWeightsUpdated = "rewards.weightsUpdated"
	// TypeRewardRateUpdated captures inflation rate or reduction factor changes.
	TypeRewardRateUpdated = "rewards.rateUpdated"
	// TypeRewardTokenPaused captures pause toggles on a reward token.
	TypeRewardTokenPaused = "rewards.tokenPaused"
	// TypeRewardsAccrued is emitted when a settlement credits claimable rewards.
	TypeRewardsAccrued = "rewards.accrued"
	// TypeRewardsForfeited records the penalised share of an early withdrawal.
	TypeRewardsForfeited = "rewards.forfeited"
	// TypeRewardsClaimed is emitted when claimable rewards are paid out.
	TypeRewardsClaimed = "rewards.claimed"
	// TypeRewardsShortfall signals the treasury could not cover a full claim.
	TypeRewardsShortfall = "rewards.shortfall"
	// TypeRewardParamUpdated records a governance parameter change.
	TypeRewardParamUpdated = "rewards.paramUpdated"
)

func formatMarkets(markets [][20]byte) string {
	parts := make([]string, len(markets))
	for i, m := range markets {
		parts[i] = marketString(m)
	}
	return strings.Join(parts, ",")
}

func formatWeights(weights []uint64) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = strconv.FormatUint(w, 10)
	}
	return strings.Join(parts, ",")
}

// RewardTokenAdded captures the initial configuration of a reward token.
type RewardTokenAdded struct {
	Distributor     string
	Token           string
	InitialRate     *big.Int
	ReductionFactor *big.Int
	Markets         [][20]byte
	Weights         []uint64
}

// EventType satisfies the Event interface.
func (RewardTokenAdded) EventType() string { return TypeRewardTokenAdded }

// Event converts the payload into a broadcastable event.
func (e RewardTokenAdded) Event() *types.Event {
	return &types.Event{Type: TypeRewardTokenAdded, Attributes: map[string]string{
		"distributor":     e.Distributor,
		"token":           normalizeAsset(e.Token),
		"initialRate":     formatAmount(e.InitialRate),
		"reductionFactor": formatAmount(e.ReductionFactor),
		"markets":         formatMarkets(e.Markets),
		"weights":         formatWeights(e.Weights),
	}}
}

// RewardTokenRemoved records the retirement of a reward token.
type RewardTokenRemoved struct {
	Distributor string
	Token       string
}

// EventType satisfies the Event interface.
func (RewardTokenRemoved) EventType() string { return TypeRewardTokenRemoved }

// Event converts the payload into a broadcastable event.
func (e RewardTokenRemoved) Event() *types.Event {
	return &types.Event{Type: TypeRewardTokenRemoved, Attributes: map[string]string{
		"distributor": e.Distributor,
		"token":       normalizeAsset(e.Token),
	}}
}

// RewardWeightsUpdated captures a reallocation of a token across markets.
type RewardWeightsUpdated struct {
	Distributor string
	Token       string
	Markets     [][20]byte
	Weights     []uint64
}

// EventType satisfies the Event interface.
func (RewardWeightsUpdated) EventType() string { return TypeRewardWeightsUpdated }

// Event converts the payload into a broadcastable event.
func (e RewardWeightsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeRewardWeightsUpdated, Attributes: map[string]string{
		"distributor": e.Distributor,
		"token":       normalizeAsset(e.Token),
		"markets":     formatMarkets(e.Markets),
		"weights":     formatWeights(e.Weights),
	}}
}

// RewardRateUpdated captures a change to the emission schedule of a token.
type RewardRateUpdated struct {
	Distributor     string
	Token           string
	InitialRate     *big.Int
	ReductionFactor *big.Int
	Timestamp       uint64
}

// EventType satisfies the Event interface.
func (RewardRateUpdated) EventType() string { return TypeRewardRateUpdated }

// Event converts the payload into a broadcastable event.
func (e RewardRateUpdated) Event() *types.Event {
	return &types.Event{Type: TypeRewardRateUpdated, Attributes: map[string]string{
		"distributor":     e.Distributor,
		"token":           normalizeAsset(e.Token),
		"initialRate":     formatAmount(e.InitialRate),
		"reductionFactor": formatAmount(e.ReductionFactor),
		"timestamp":       formatUint(e.Timestamp),
	}}
}

// RewardTokenPaused captures a pause toggle on a reward token.
type RewardTokenPaused struct {
	Distributor string
	Token       string
	Paused      bool
}

// EventType satisfies the Event interface.
func (RewardTokenPaused) EventType() string { return TypeRewardTokenPaused }

// Event converts the payload into a broadcastable event.
func (e RewardTokenPaused) Event() *types.Event {
	return &types.Event{Type: TypeRewardTokenPaused, Attributes: map[string]string{
		"distributor": e.Distributor,
		"token":       normalizeAsset(e.Token),
		"paused":      formatBool(e.Paused),
	}}
}

// RewardsAccrued records rewards credited to a user during settlement.
type RewardsAccrued struct {
	Distributor string
	Market      [20]byte
	User        [20]byte
	Token       string
	Amount      *big.Int
}

// EventType satisfies the Event interface.
func (RewardsAccrued) EventType() string { return TypeRewardsAccrued }

// Event converts the payload into a broadcastable event.
func (e RewardsAccrued) Event() *types.Event {
	return &types.Event{Type: TypeRewardsAccrued, Attributes: map[string]string{
		"distributor": e.Distributor,
		"market":      marketString(e.Market),
		"user":        accountString(e.User),
		"token":       normalizeAsset(e.Token),
		"amount":      formatAmount(e.Amount),
	}}
}

// RewardsForfeited records rewards withheld by the early-withdrawal penalty.
type RewardsForfeited struct {
	Distributor string
	Market      [20]byte
	User        [20]byte
	Token       string
	Amount      *big.Int
}

// EventType satisfies the Event interface.
func (RewardsForfeited) EventType() string { return TypeRewardsForfeited }

// Event converts the payload into a broadcastable event.
func (e RewardsForfeited) Event() *types.Event {
	return &types.Event{Type: TypeRewardsForfeited, Attributes: map[string]string{
		"distributor": e.Distributor,
		"market":      marketString(e.Market),
		"user":        accountString(e.User),
		"token":       normalizeAsset(e.Token),
		"amount":      formatAmount(e.Amount),
	}}
}

// RewardsClaimed records a payout from the reward treasury.
type RewardsClaimed struct {
	Distributor string
	User        [20]byte
	Token       string
	Amount      *big.Int
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Event converts the payload into a broadcastable event.
func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"distributor": e.Distributor,
		"user":        accountString(e.User),
		"token":       normalizeAsset(e.Token),
		"amount":      formatAmount(e.Amount),
	}}
}

// RewardsShortfall records the portion of a claim the treasury could not pay.
type RewardsShortfall struct {
	Distributor string
	User        [20]byte
	Token       string
	Unpaid      *big.Int
}

// EventType satisfies the Event interface.
func (RewardsShortfall) EventType() string { return TypeRewardsShortfall }

// Event converts the payload into a broadcastable event.
func (e RewardsShortfall) Event() *types.Event {
	return &types.Event{Type: TypeRewardsShortfall, Attributes: map[string]string{
		"distributor": e.Distributor,
		"user":        accountString(e.User),
		"token":       normalizeAsset(e.Token),
		"unpaid":      formatAmount(e.Unpaid),
	}}
}

// RewardParamUpdated records a governance change to a distributor parameter.
type RewardParamUpdated struct {
	Distributor string
	Param       string
	Value       string
}

// EventType satisfies the Event interface.
func (RewardParamUpdated) EventType() string { return TypeRewardParamUpdated }

// Event converts the payload into a broadcastable event.
func (e RewardParamUpdated) Event() *types.Event {
	return &types.Event{Type: TypeRewardParamUpdated, Attributes: map[string]string{
		"distributor": e.Distributor,
		"param":       e.Param,
		"value":       e.Value,
	}}
}
