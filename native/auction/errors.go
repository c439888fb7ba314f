package auction

import (
	"errors"

	"safetymodule/native/common"
)

var (
	errNilState = errors.New("auction: state not configured")

	ErrAuctionNotFound   = common.Validation("auction: auction not found")
	ErrInvalidParams     = common.Validation("auction: numLots, lotPrice, initialLotSize and timeLimit must be positive")
	ErrZeroLots          = common.Validation("auction: must buy at least one lot")
	ErrTokenRequired     = common.Validation("auction: token and payment token required")
	ErrEmptyLot          = common.Validation("auction: lot size is zero")
	ErrNoInventory       = common.Validation("auction: inventory must be positive")
	ErrAuctionInactive   = common.State("auction: auction is not active")
	ErrAuctionNotExpired = common.State("auction: auction has not reached its end time")
	ErrNotEnoughLots     = common.Capacity("auction: not enough lots remaining")
	ErrAuctionExpired    = common.Timing("auction: auction time limit passed")
)
