package safety

import (
	"errors"

	"safetymodule/native/common"
)

var (
	errNilState = errors.New("safety: state not configured")
	errNotWired = errors.New("safety: pool and auction engines not configured")

	ErrZeroAmount          = common.Validation("safety: amount must be positive")
	ErrInvalidMaxLoss      = common.Validation("safety: max percent user loss must be within (0, 10000]")
	ErrUnknownAuction      = common.Validation("safety: auction not linked to a pool")
	ErrAuctionInProgress   = common.State("safety: pool already has an active auction")
	ErrSlashExceedsMaxLoss = common.Capacity("safety: slash exceeds max percent user loss")
)
