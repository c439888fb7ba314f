package rewards

import (
	"errors"

	"safetymodule/native/common"
)

var (
	errNilState  = errors.New("rewards: state not configured")
	errNilSource = errors.New("rewards: balance source not configured")

	ErrTokenRequired       = common.Validation("rewards: token required")
	ErrTokenExists         = common.Validation("rewards: reward token already configured")
	ErrTokenNotFound       = common.Validation("rewards: reward token not found")
	ErrMarketsMismatch     = common.Validation("rewards: markets and weights length mismatch")
	ErrInvalidMarket       = common.Validation("rewards: invalid market")
	ErrDuplicateMarket     = common.Validation("rewards: duplicate market")
	ErrInvalidWeights      = common.Validation("rewards: configuration error: weights must sum to 10000")
	ErrInvalidRate         = common.Validation("rewards: inflation rate must not be negative")
	ErrInvalidFactor       = common.Validation("rewards: reduction factor must be at least 1e18")
	ErrInvalidMultiplier   = common.Validation("rewards: max multiplier out of range")
	ErrInvalidSmoothing    = common.Validation("rewards: smoothing value must be positive")
	ErrInvalidMaxTokens    = common.Validation("rewards: max reward tokens must be positive")
	ErrInvalidPeriod       = common.Validation("rewards: reduction period too short")
	ErrTooManyRewardTokens = common.Capacity("rewards: market reward token limit reached")
	ErrTreasuryNotSet      = common.State("rewards: treasury not configured")
)
