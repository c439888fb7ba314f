package events

import (
	"math/big"

	"safetymodule/core/types"
)

const (
	// TypeStakePoolRegistered is emitted when governance registers a pool.
	TypeStakePoolRegistered = "stakepool.registered"
	// TypeStakePoolStaked captures shares minted against deposited collateral.
	TypeStakePoolStaked = "stakepool.staked"
	// TypeStakePoolRedeemed captures shares burned for collateral.
	TypeStakePoolRedeemed = "stakepool.redeemed"
	// TypeStakePoolCooldown is emitted when a holder signals intent to unstake.
	TypeStakePoolCooldown = "stakepool.cooldown"
	// TypeStakePoolTransfer captures share movements between holders.
	TypeStakePoolTransfer = "stakepool.transfer"
	// TypeStakePoolSlashed is emitted when collateral is seized.
	TypeStakePoolSlashed = "stakepool.slashed"
	// TypeStakePoolFundsReturned is emitted when collateral flows back in.
	TypeStakePoolFundsReturned = "stakepool.fundsReturned"
	// TypeStakePoolSettled marks the return to RUNNING after a slash.
	TypeStakePoolSettled = "stakepool.slashingSettled"
	// TypeStakePoolParamUpdated is emitted for governance parameter changes.
	TypeStakePoolParamUpdated = "stakepool.paramUpdated"
)

// StakePoolRegistered records a new pool and its initial parameters.
type StakePoolRegistered struct {
	Pool            [20]byte
	Underlying      string
	CooldownSeconds uint64
	UnstakeWindow   uint64
	MaxStakeAmount  *big.Int
}

// EventType satisfies the Event interface.
func (StakePoolRegistered) EventType() string { return TypeStakePoolRegistered }

// Event converts the payload into a broadcastable event.
func (e StakePoolRegistered) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolRegistered, Attributes: map[string]string{
		"pool":           marketString(e.Pool),
		"underlying":     normalizeAsset(e.Underlying),
		"cooldown":       formatUint(e.CooldownSeconds),
		"unstakeWindow":  formatUint(e.UnstakeWindow),
		"maxStakeAmount": formatAmount(e.MaxStakeAmount),
	}}
}

// StakePoolStaked captures a deposit.
type StakePoolStaked struct {
	Pool         [20]byte
	From         [20]byte
	To           [20]byte
	Amount       *big.Int
	Shares       *big.Int
	ExchangeRate *big.Int
}

// EventType satisfies the Event interface.
func (StakePoolStaked) EventType() string { return TypeStakePoolStaked }

// Event converts the payload into a broadcastable event.
func (e StakePoolStaked) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolStaked, Attributes: map[string]string{
		"pool":         marketString(e.Pool),
		"from":         accountString(e.From),
		"to":           accountString(e.To),
		"amount":       formatAmount(e.Amount),
		"shares":       formatAmount(e.Shares),
		"exchangeRate": formatAmount(e.ExchangeRate),
	}}
}

// StakePoolRedeemed captures a withdrawal.
type StakePoolRedeemed struct {
	Pool         [20]byte
	From         [20]byte
	To           [20]byte
	Shares       *big.Int
	Amount       *big.Int
	ExchangeRate *big.Int
	PostSlashing bool
}

// EventType satisfies the Event interface.
func (StakePoolRedeemed) EventType() string { return TypeStakePoolRedeemed }

// Event converts the payload into a broadcastable event.
func (e StakePoolRedeemed) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolRedeemed, Attributes: map[string]string{
		"pool":         marketString(e.Pool),
		"from":         accountString(e.From),
		"to":           accountString(e.To),
		"shares":       formatAmount(e.Shares),
		"amount":       formatAmount(e.Amount),
		"exchangeRate": formatAmount(e.ExchangeRate),
		"postSlashing": formatBool(e.PostSlashing),
	}}
}

// StakePoolCooldown records the start of a holder's cooldown.
type StakePoolCooldown struct {
	Pool   [20]byte
	Holder [20]byte
	Start  uint64
}

// EventType satisfies the Event interface.
func (StakePoolCooldown) EventType() string { return TypeStakePoolCooldown }

// Event converts the payload into a broadcastable event.
func (e StakePoolCooldown) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolCooldown, Attributes: map[string]string{
		"pool":   marketString(e.Pool),
		"holder": accountString(e.Holder),
		"start":  formatUint(e.Start),
	}}
}

// StakePoolTransfer records shares moving between holders.
type StakePoolTransfer struct {
	Pool             [20]byte
	From             [20]byte
	To               [20]byte
	Shares           *big.Int
	ReceiverCooldown uint64
}

// EventType satisfies the Event interface.
func (StakePoolTransfer) EventType() string { return TypeStakePoolTransfer }

// Event converts the payload into a broadcastable event.
func (e StakePoolTransfer) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolTransfer, Attributes: map[string]string{
		"pool":             marketString(e.Pool),
		"from":             accountString(e.From),
		"to":               accountString(e.To),
		"shares":           formatAmount(e.Shares),
		"receiverCooldown": formatUint(e.ReceiverCooldown),
	}}
}

// StakePoolSlashed records collateral seized from a pool.
type StakePoolSlashed struct {
	Pool         [20]byte
	Destination  [20]byte
	Amount       *big.Int
	ExchangeRate *big.Int
}

// EventType satisfies the Event interface.
func (StakePoolSlashed) EventType() string { return TypeStakePoolSlashed }

// Event converts the payload into a broadcastable event.
func (e StakePoolSlashed) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolSlashed, Attributes: map[string]string{
		"pool":         marketString(e.Pool),
		"destination":  accountString(e.Destination),
		"amount":       formatAmount(e.Amount),
		"exchangeRate": formatAmount(e.ExchangeRate),
	}}
}

// StakePoolFundsReturned records collateral returned to a pool.
type StakePoolFundsReturned struct {
	Pool         [20]byte
	From         [20]byte
	Amount       *big.Int
	ExchangeRate *big.Int
}

// EventType satisfies the Event interface.
func (StakePoolFundsReturned) EventType() string { return TypeStakePoolFundsReturned }

// Event converts the payload into a broadcastable event.
func (e StakePoolFundsReturned) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolFundsReturned, Attributes: map[string]string{
		"pool":         marketString(e.Pool),
		"from":         accountString(e.From),
		"amount":       formatAmount(e.Amount),
		"exchangeRate": formatAmount(e.ExchangeRate),
	}}
}

// StakePoolSettled marks the end of the post-slashing period.
type StakePoolSettled struct {
	Pool [20]byte
}

// EventType satisfies the Event interface.
func (StakePoolSettled) EventType() string { return TypeStakePoolSettled }

// Event converts the payload into a broadcastable event.
func (e StakePoolSettled) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolSettled, Attributes: map[string]string{
		"pool": marketString(e.Pool),
	}}
}

// StakePoolParamUpdated records a governance change to a pool parameter.
type StakePoolParamUpdated struct {
	Pool  [20]byte
	Param string
	Value string
}

// EventType satisfies the Event interface.
func (StakePoolParamUpdated) EventType() string { return TypeStakePoolParamUpdated }

// Event converts the payload into a broadcastable event.
func (e StakePoolParamUpdated) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolParamUpdated, Attributes: map[string]string{
		"pool":  marketString(e.Pool),
		"param": e.Param,
		"value": e.Value,
	}}
}
