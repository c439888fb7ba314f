package stakepool

import (
	"errors"

	"safetymodule/native/common"
)

var (
	errNilState = errors.New("stakepool: state not configured")

	ErrPoolNotFound         = common.Validation("stakepool: pool not found")
	ErrPoolExists           = common.Validation("stakepool: pool already registered")
	ErrInvalidPool          = common.Validation("stakepool: invalid pool configuration")
	ErrZeroAmount           = common.Validation("stakepool: amount must be positive")
	ErrAmountTooSmall       = common.Validation("stakepool: amount below one share")
	ErrZeroBalance          = common.Validation("stakepool: holder has no shares")
	ErrInsufficientShares   = common.Validation("stakepool: insufficient shares")
	ErrPostSlashing         = common.State("stakepool: pool is post-slashing")
	ErrNotPostSlashing      = common.State("stakepool: pool is not post-slashing")
	ErrZeroExchangeRate     = common.State("stakepool: exchange rate is zero")
	ErrStakeCapExceeded     = common.Capacity("stakepool: stake cap exceeded")
	ErrCooldownNotStarted   = common.Timing("stakepool: cooldown not started")
	ErrCooldownActive       = common.Timing("stakepool: cooldown not elapsed")
	ErrUnstakeWindowExpired = common.Timing("stakepool: unstake window expired")
)
