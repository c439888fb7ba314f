package state

import (
	"encoding/binary"
	"fmt"

	"safetymodule/native/safety"
)

var (
	safetyParamsKey     = []byte("safety/params")
	safetyPoolPrefix    = []byte("safety/pool-auction/")
	safetyAuctionPrefix = []byte("safety/auction-pool/")
)

func safetyPoolKey(pool [20]byte) []byte {
	return append(append([]byte(nil), safetyPoolPrefix...), pool[:]...)
}

func safetyAuctionKey(id uint64) []byte {
	key := make([]byte, len(safetyAuctionPrefix)+8)
	copy(key, safetyAuctionPrefix)
	binary.BigEndian.PutUint64(key[len(safetyAuctionPrefix):], id)
	return key
}

// SafetyParams loads the orchestrator configuration.
func (m *Manager) SafetyParams() (*safety.Params, bool, error) {
	p := new(safety.Params)
	ok, err := m.KVGet(safetyParamsKey, p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p, true, nil
}

// PutSafetyParams persists the orchestrator configuration.
func (m *Manager) PutSafetyParams(p *safety.Params) error {
	if p == nil {
		return fmt.Errorf("safety: nil params")
	}
	return m.KVPut(safetyParamsKey, p)
}

// SafetyPoolAuction loads the auction link of a pool.
func (m *Manager) SafetyPoolAuction(pool [20]byte) (*safety.PoolAuction, bool, error) {
	link := new(safety.PoolAuction)
	ok, err := m.KVGet(safetyPoolKey(pool), link)
	if err != nil || !ok {
		return nil, ok, err
	}
	return link, true, nil
}

// PutSafetyPoolAuction persists the auction link of a pool.
func (m *Manager) PutSafetyPoolAuction(link *safety.PoolAuction) error {
	if link == nil {
		return fmt.Errorf("safety: nil pool auction")
	}
	return m.KVPut(safetyPoolKey(link.Pool), link)
}

// SafetyAuctionPool returns the pool an auction liquidates.
func (m *Manager) SafetyAuctionPool(id uint64) ([20]byte, bool, error) {
	var pool [20]byte
	ok, err := m.KVGet(safetyAuctionKey(id), &pool)
	return pool, ok, err
}

// PutSafetyAuctionPool records the pool an auction liquidates.
func (m *Manager) PutSafetyAuctionPool(id uint64, pool [20]byte) error {
	return m.KVPut(safetyAuctionKey(id), pool)
}
