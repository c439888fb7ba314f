package auction

import "math/big"

// Auction returns the stored auction with its status resolved at now.
func (e *Engine) Auction(id uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.load(id)
	if err != nil {
		return nil, err
	}
	a.Status = a.StatusAt(e.now())
	return a, nil
}

// Status returns the lifecycle position of an auction.
func (e *Engine) Status(id uint64) (Status, error) {
	a, err := e.Auction(id)
	if err != nil {
		return StatusPending, err
	}
	return a.Status, nil
}

// IsAuctionActive reports whether purchases are currently accepted.
func (e *Engine) IsAuctionActive(id uint64) (bool, error) {
	status, err := e.Status(id)
	if err != nil {
		return false, err
	}
	return status == StatusActive, nil
}

// CurrentLotSize returns the lot size a purchase would receive now.
func (e *Engine) CurrentLotSize(id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return a.LotSizeAt(e.now()), nil
}

// NextAuctionID returns the id the next StartAuction will assign.
func (e *Engine) NextAuctionID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.AuctionNextID()
}

// ExpiredAuctions lists auctions still marked active whose end time has
// passed and which are waiting for CompleteAuction.
func (e *Engine) ExpiredAuctions() ([]uint64, error) {
	next, err := e.NextAuctionID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	var out []uint64
	for id := uint64(0); id < next; id++ {
		a, err := e.load(id)
		if err != nil {
			return nil, err
		}
		if a.Status == StatusActive && now > a.EndTime {
			out = append(out, id)
		}
	}
	return out, nil
}
