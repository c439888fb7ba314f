package state

import (
	"fmt"
	"math/big"
	"sort"

	"safetymodule/native/rewards"
)

func rewardKey(ns, kind string, parts ...[]byte) []byte {
	key := []byte("rewards/" + ns + "/" + kind)
	for _, p := range parts {
		key = append(key, '/')
		key = append(key, p...)
	}
	return key
}

// RewardParams loads the distributor configuration of namespace ns.
func (m *Manager) RewardParams(ns string) (*rewards.Params, bool, error) {
	p := new(rewards.Params)
	ok, err := m.KVGet(rewardKey(ns, "params"), p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p, true, nil
}

// PutRewardParams persists the distributor configuration.
func (m *Manager) PutRewardParams(ns string, p *rewards.Params) error {
	if p == nil {
		return fmt.Errorf("rewards: nil params")
	}
	return m.KVPut(rewardKey(ns, "params"), p)
}

// RewardTokenConfig loads a reward token configuration.
func (m *Manager) RewardTokenConfig(ns, token string) (*rewards.TokenConfig, bool, error) {
	cfg := new(rewards.TokenConfig)
	ok, err := m.KVGet(rewardKey(ns, "token", []byte(token)), cfg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg, true, nil
}

// PutRewardTokenConfig persists a token configuration and indexes it.
func (m *Manager) PutRewardTokenConfig(ns string, cfg *rewards.TokenConfig) error {
	if cfg == nil || cfg.Token == "" {
		return fmt.Errorf("rewards: invalid token config")
	}
	list, err := m.RewardTokenList(ns)
	if err != nil {
		return err
	}
	idx := sort.SearchStrings(list, cfg.Token)
	if idx == len(list) || list[idx] != cfg.Token {
		list = append(list, "")
		copy(list[idx+1:], list[idx:])
		list[idx] = cfg.Token
		if err := m.KVPut(rewardKey(ns, "tokens"), list); err != nil {
			return err
		}
	}
	return m.KVPut(rewardKey(ns, "token", []byte(cfg.Token)), cfg)
}

// RewardTokenList returns every configured token of ns in sorted order.
func (m *Manager) RewardTokenList(ns string) ([]string, error) {
	var list []string
	if err := m.KVGetList(rewardKey(ns, "tokens"), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RewardMarket loads the reward state of a market.
func (m *Manager) RewardMarket(ns string, market [20]byte) (*rewards.MarketState, bool, error) {
	ms := new(rewards.MarketState)
	ok, err := m.KVGet(rewardKey(ns, "market", market[:]), ms)
	if err != nil || !ok {
		return nil, ok, err
	}
	return ms, true, nil
}

// PutRewardMarket persists the reward state of a market.
func (m *Manager) PutRewardMarket(ns string, ms *rewards.MarketState) error {
	if ms == nil {
		return fmt.Errorf("rewards: nil market")
	}
	if ms.TotalSupply == nil {
		ms.TotalSupply = big.NewInt(0)
	}
	return m.KVPut(rewardKey(ns, "market", ms.Market[:]), ms)
}

// RewardAccumulator loads the accumulator of a (market, token) pair.
func (m *Manager) RewardAccumulator(ns string, market [20]byte, token string) (*rewards.Accumulator, bool, error) {
	acc := new(rewards.Accumulator)
	ok, err := m.KVGet(rewardKey(ns, "acc", market[:], []byte(token)), acc)
	if err != nil || !ok {
		return nil, ok, err
	}
	return acc, true, nil
}

// PutRewardAccumulator persists an accumulator.
func (m *Manager) PutRewardAccumulator(ns string, acc *rewards.Accumulator) error {
	if acc == nil {
		return fmt.Errorf("rewards: nil accumulator")
	}
	return m.KVPut(rewardKey(ns, "acc", acc.Market[:], []byte(acc.Token)), acc)
}

// RewardPosition loads a user's cached position in a market.
func (m *Manager) RewardPosition(ns string, market, user [20]byte) (*rewards.Position, bool, error) {
	pos := new(rewards.Position)
	ok, err := m.KVGet(rewardKey(ns, "pos", market[:], user[:]), pos)
	if err != nil || !ok {
		return nil, ok, err
	}
	return pos, true, nil
}

// PutRewardPosition persists a user's cached position.
func (m *Manager) PutRewardPosition(ns string, pos *rewards.Position) error {
	if pos == nil {
		return fmt.Errorf("rewards: nil position")
	}
	return m.KVPut(rewardKey(ns, "pos", pos.Market[:], pos.User[:]), pos)
}

func (m *Manager) getBig(key []byte) (*big.Int, error) {
	v := new(big.Int)
	ok, err := m.KVGet(key, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return v, nil
}

// RewardUserIndex returns the accumulator value user was last settled at.
func (m *Manager) RewardUserIndex(ns string, market, user [20]byte, token string) (*big.Int, error) {
	return m.getBig(rewardKey(ns, "idx", market[:], user[:], []byte(token)))
}

// PutRewardUserIndex records the accumulator value user was settled at.
func (m *Manager) PutRewardUserIndex(ns string, market, user [20]byte, token string, v *big.Int) error {
	return m.KVPut(rewardKey(ns, "idx", market[:], user[:], []byte(token)), v)
}

// RewardClaimable returns user's unpaid rewards in token.
func (m *Manager) RewardClaimable(ns string, user [20]byte, token string) (*big.Int, error) {
	return m.getBig(rewardKey(ns, "claim", user[:], []byte(token)))
}

// PutRewardClaimable stores user's unpaid rewards in token.
func (m *Manager) PutRewardClaimable(ns string, user [20]byte, token string, v *big.Int) error {
	return m.KVPut(rewardKey(ns, "claim", user[:], []byte(token)), v)
}

// RewardUserMarkets lists the markets user has a position in.
func (m *Manager) RewardUserMarkets(ns string, user [20]byte) ([][20]byte, error) {
	var markets [][20]byte
	if err := m.KVGetList(rewardKey(ns, "markets", user[:]), &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// PutRewardUserMarkets stores the markets user has a position in.
func (m *Manager) PutRewardUserMarkets(ns string, user [20]byte, markets [][20]byte) error {
	return m.KVPut(rewardKey(ns, "markets", user[:]), markets)
}
