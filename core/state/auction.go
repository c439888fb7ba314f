package state

import (
	"encoding/binary"
	"fmt"

	"safetymodule/native/auction"
)

var (
	auctionPrefix    = []byte("auction/record/")
	auctionNextIDKey = []byte("auction/next-id")
)

func auctionKey(id uint64) []byte {
	key := make([]byte, len(auctionPrefix)+8)
	copy(key, auctionPrefix)
	binary.BigEndian.PutUint64(key[len(auctionPrefix):], id)
	return key
}

// Auction loads an auction record.
func (m *Manager) Auction(id uint64) (*auction.Auction, bool, error) {
	a := new(auction.Auction)
	ok, err := m.KVGet(auctionKey(id), a)
	if err != nil || !ok {
		return nil, ok, err
	}
	return a, true, nil
}

// PutAuction persists an auction record.
func (m *Manager) PutAuction(a *auction.Auction) error {
	if a == nil {
		return fmt.Errorf("auction: nil record")
	}
	return m.KVPut(auctionKey(a.ID), a)
}

// AuctionNextID returns the next auction identifier to assign.
func (m *Manager) AuctionNextID() (uint64, error) {
	var id uint64
	if _, err := m.KVGet(auctionNextIDKey, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// PutAuctionNextID advances the auction identifier counter.
func (m *Manager) PutAuctionNextID(id uint64) error {
	return m.KVPut(auctionNextIDKey, id)
}
