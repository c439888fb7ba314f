package state

import (
	"bytes"
	"fmt"
	"sort"

	"safetymodule/native/stakepool"
)

var (
	stakePoolPrefix     = []byte("stakepool/pool/")
	stakePoolListKey    = []byte("stakepool/pools")
	stakePoolHolderPref = []byte("stakepool/holder/")
)

func stakePoolKey(addr [20]byte) []byte {
	return append(append([]byte(nil), stakePoolPrefix...), addr[:]...)
}

func stakeHolderKey(pool, holder [20]byte) []byte {
	key := append([]byte(nil), stakePoolHolderPref...)
	key = append(key, pool[:]...)
	key = append(key, '/')
	return append(key, holder[:]...)
}

// StakePool loads a pool record.
func (m *Manager) StakePool(addr [20]byte) (*stakepool.Pool, bool, error) {
	pool := new(stakepool.Pool)
	ok, err := m.KVGet(stakePoolKey(addr), pool)
	if err != nil || !ok {
		return nil, ok, err
	}
	return pool, true, nil
}

// PutStakePool persists a pool record and indexes its address.
func (m *Manager) PutStakePool(pool *stakepool.Pool) error {
	if pool == nil {
		return fmt.Errorf("stakepool: nil pool")
	}
	list, err := m.StakePoolList()
	if err != nil {
		return err
	}
	idx := sort.Search(len(list), func(i int) bool { return bytes.Compare(list[i][:], pool.Address[:]) >= 0 })
	if idx == len(list) || list[idx] != pool.Address {
		list = append(list, [20]byte{})
		copy(list[idx+1:], list[idx:])
		list[idx] = pool.Address
		if err := m.KVPut(stakePoolListKey, list); err != nil {
			return err
		}
	}
	return m.KVPut(stakePoolKey(pool.Address), pool)
}

// StakePoolList returns the registered pools in address order.
func (m *Manager) StakePoolList() ([][20]byte, error) {
	var list [][20]byte
	if err := m.KVGetList(stakePoolListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// StakeHolder loads a holder record, returning nil when absent.
func (m *Manager) StakeHolder(pool, holder [20]byte) (*stakepool.Holder, error) {
	h := new(stakepool.Holder)
	ok, err := m.KVGet(stakeHolderKey(pool, holder), h)
	if err != nil || !ok {
		return nil, err
	}
	return h, nil
}

// PutStakeHolder persists a holder record.
func (m *Manager) PutStakeHolder(pool, holder [20]byte, h *stakepool.Holder) error {
	if h == nil {
		return fmt.Errorf("stakepool: nil holder")
	}
	return m.KVPut(stakeHolderKey(pool, holder), h)
}
