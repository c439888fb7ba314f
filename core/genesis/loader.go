package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"safetymodule/core/state"
	"safetymodule/native/rewards"
	"safetymodule/native/safety"
	"safetymodule/native/stakepool"
)

// Engines are the components genesis configures through their governance
// entry points.
type Engines struct {
	Pools   *stakepool.Engine
	Rewards *rewards.Distributor
	Safety  *safety.Engine
}

// Apply writes spec into manager and commits it. Tokens, allocations and
// roles go straight into state; pools, reward tokens and params go through
// the engines so they pass the same validation as live calls.
func Apply(spec *GenesisSpec, manager *state.Manager, engines Engines) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	if err := apply(spec, manager, engines); err != nil {
		manager.Discard()
		return err
	}
	return manager.Commit()
}

func apply(spec *GenesisSpec, manager *state.Manager, engines Engines) error {
	// 1) Tokens (sorted)
	tokens := append([]TokenSpec(nil), spec.Tokens...)
	sort.Slice(tokens, func(i, j int) bool {
		return strings.ToUpper(tokens[i].Symbol) < strings.ToUpper(tokens[j].Symbol)
	})
	for _, token := range tokens {
		if err := manager.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
			return fmt.Errorf("register token %q: %w", token.Symbol, err)
		}
	}

	// 2) Allocations (outer: addresses sorted; inner: symbols sorted)
	addresses := make([]string, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	for _, addrStr := range addresses {
		addr, err := ParseBech32Account(addrStr)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		balances := spec.Alloc[addrStr]
		symbols := make([]string, 0, len(balances))
		for symbol := range balances {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			amount, err := parseAmountString(balances[symbol])
			if err != nil {
				return fmt.Errorf("alloc %q %s: %w", addrStr, symbol, err)
			}
			if amount.Sign() == 0 {
				continue
			}
			if err := manager.Mint(addr[:], symbol, amount); err != nil {
				return fmt.Errorf("alloc %q %s: %w", addrStr, symbol, err)
			}
		}
	}

	// 3) Roles (role names sorted)
	roles := make([]string, 0, len(spec.Roles))
	for role := range spec.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		for _, member := range spec.Roles[role] {
			addr, err := ParseBech32Account(member)
			if err != nil {
				return fmt.Errorf("role %q: %w", role, err)
			}
			if err := manager.SetRole(role, addr[:]); err != nil {
				return fmt.Errorf("role %q: %w", role, err)
			}
		}
	}

	// 4) Engines
	gov := spec.Governance()
	if len(spec.Pools) > 0 && engines.Pools == nil {
		return fmt.Errorf("pools configured but no pool engine supplied")
	}
	for _, pool := range spec.Pools {
		cfg := stakepool.PoolConfig{
			Address:         pool.addr,
			Underlying:      strings.ToUpper(strings.TrimSpace(pool.Underlying)),
			CooldownSeconds: pool.CooldownSeconds,
			UnstakeWindow:   pool.UnstakeWindow,
			MaxStakeAmount:  pool.stakeCap,
		}
		if err := engines.Pools.RegisterPool(gov, cfg); err != nil {
			return fmt.Errorf("pool %s: %w", pool.Address, err)
		}
	}
	if spec.Rewards != nil {
		if engines.Rewards == nil {
			return fmt.Errorf("rewards configured but no distributor supplied")
		}
		if err := engines.Rewards.SetParams(gov, *spec.Rewards.params); err != nil {
			return fmt.Errorf("reward params: %w", err)
		}
		for _, token := range spec.Rewards.Tokens {
			err := engines.Rewards.AddRewardToken(gov, token.Symbol, new(big.Int).Set(token.rate), new(big.Int).Set(token.factor), token.markets, token.Weights)
			if err != nil {
				return fmt.Errorf("reward token %s: %w", token.Symbol, err)
			}
		}
	}
	if spec.Safety != nil {
		if engines.Safety == nil {
			return fmt.Errorf("safety configured but no orchestrator supplied")
		}
		if err := engines.Safety.SetMaxPercentUserLoss(gov, spec.Safety.MaxPercentUserLoss); err != nil {
			return fmt.Errorf("safety params: %w", err)
		}
	}

	// 5) Pauses last so engine configuration above is not blocked.
	modules := make([]string, 0, len(spec.Pauses))
	for module := range spec.Pauses {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	for _, module := range modules {
		if err := manager.SetPaused(module, spec.Pauses[module]); err != nil {
			return fmt.Errorf("pause %q: %w", module, err)
		}
	}
	return nil
}
