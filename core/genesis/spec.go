package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"safetymodule/native/common"
	"safetymodule/native/rewards"
)

// GenesisSpec is the initial state of the safety module.
type GenesisSpec struct {
	Tokens  []TokenSpec                  `json:"tokens" yaml:"tokens"`
	Alloc   map[string]map[string]string `json:"alloc" yaml:"alloc"` // addr -> token -> amount
	Roles   map[string][]string          `json:"roles" yaml:"roles"` // role -> []addr
	Pauses  map[string]bool              `json:"pauses,omitempty" yaml:"pauses,omitempty"`
	Pools   []PoolSpec                   `json:"pools,omitempty" yaml:"pools,omitempty"`
	Rewards *RewardsSpec                 `json:"rewards,omitempty" yaml:"rewards,omitempty"`
	Safety  *SafetySpec                  `json:"safety,omitempty" yaml:"safety,omitempty"`

	governance [20]byte
}

type TokenSpec struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

type PoolSpec struct {
	Address         string `json:"address" yaml:"address"`
	Underlying      string `json:"underlying" yaml:"underlying"`
	CooldownSeconds uint64 `json:"cooldownSeconds" yaml:"cooldownSeconds"`
	UnstakeWindow   uint64 `json:"unstakeWindow" yaml:"unstakeWindow"`
	MaxStakeAmount  string `json:"maxStakeAmount,omitempty" yaml:"maxStakeAmount,omitempty"`

	addr     [20]byte
	stakeCap *big.Int
}

type RewardsSpec struct {
	Params *RewardParamsSpec `json:"params,omitempty" yaml:"params,omitempty"`
	Tokens []RewardTokenSpec `json:"tokens" yaml:"tokens"`

	params *rewards.Params
}

type RewardParamsSpec struct {
	MaxMultiplier            string `json:"maxMultiplier,omitempty" yaml:"maxMultiplier,omitempty"`
	SmoothingValue           uint64 `json:"smoothingValue,omitempty" yaml:"smoothingValue,omitempty"`
	EarlyWithdrawalThreshold uint64 `json:"earlyWithdrawalThreshold,omitempty" yaml:"earlyWithdrawalThreshold,omitempty"`
	MaxRewardTokens          uint64 `json:"maxRewardTokens,omitempty" yaml:"maxRewardTokens,omitempty"`
	ReductionPeriod          uint64 `json:"reductionPeriod,omitempty" yaml:"reductionPeriod,omitempty"`
}

type RewardTokenSpec struct {
	Symbol          string   `json:"symbol" yaml:"symbol"`
	InitialRate     string   `json:"initialRate" yaml:"initialRate"`
	ReductionFactor string   `json:"reductionFactor,omitempty" yaml:"reductionFactor,omitempty"`
	Markets         []string `json:"markets" yaml:"markets"`
	Weights         []uint64 `json:"weights" yaml:"weights"`

	rate    *big.Int
	factor  *big.Int
	markets [][20]byte
}

type SafetySpec struct {
	MaxPercentUserLoss uint64 `json:"maxPercentUserLoss" yaml:"maxPercentUserLoss"`
}

// LoadGenesisSpec reads a genesis file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Unknown fields are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec: %w", err)
		}
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Governance returns the account the loader acts as when configuring
// engines: the first GOVERNANCE member of the spec.
func (s *GenesisSpec) Governance() [20]byte { return s.governance }

func (s *GenesisSpec) validate() error {
	symbols := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		token := &s.Tokens[i]
		if err := token.validate(); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if _, dup := symbols[symbol]; dup {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, symbol)
		}
		symbols[symbol] = struct{}{}
	}
	for addr, balances := range s.Alloc {
		if _, err := ParseBech32Account(addr); err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		for symbol, amount := range balances {
			if _, ok := symbols[strings.ToUpper(strings.TrimSpace(symbol))]; !ok {
				return fmt.Errorf("alloc %q: unknown token %q", addr, symbol)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc %q %s: %w", addr, symbol, err)
			}
		}
	}
	for role, members := range s.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("roles: empty role name")
		}
		for _, member := range members {
			addr, err := ParseBech32Account(member)
			if err != nil {
				return fmt.Errorf("roles %q: %w", role, err)
			}
			if role == common.RoleGovernance && s.governance == ([20]byte{}) {
				s.governance = addr
			}
		}
	}
	needsGovernance := len(s.Pools) > 0 || s.Rewards != nil || s.Safety != nil
	if needsGovernance && s.governance == ([20]byte{}) {
		return fmt.Errorf("roles: %s member required to configure engines", common.RoleGovernance)
	}
	for i := range s.Pools {
		if err := s.Pools[i].validate(symbols); err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
	}
	if err := s.Rewards.validate(symbols); err != nil {
		return fmt.Errorf("rewards: %w", err)
	}
	if s.Safety != nil {
		if s.Safety.MaxPercentUserLoss == 0 || s.Safety.MaxPercentUserLoss > common.BasisPoints.Uint64() {
			return fmt.Errorf("safety: maxPercentUserLoss must be within (0, 10000]")
		}
	}
	return nil
}

func (t *TokenSpec) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol must be provided")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name must be provided")
	}
	if t.Decimals > 18 {
		return fmt.Errorf("decimals must be 18 or fewer")
	}
	return nil
}

func (p *PoolSpec) validate(symbols map[string]struct{}) error {
	addr, err := ParseBech32Account(p.Address)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if _, ok := symbols[strings.ToUpper(strings.TrimSpace(p.Underlying))]; !ok {
		return fmt.Errorf("unknown underlying %q", p.Underlying)
	}
	stakeCap, err := parseAmountString(p.MaxStakeAmount)
	if err != nil {
		return fmt.Errorf("maxStakeAmount: %w", err)
	}
	p.addr = addr
	p.stakeCap = stakeCap
	return nil
}

func (r *RewardsSpec) validate(symbols map[string]struct{}) error {
	if r == nil {
		return nil
	}
	params := rewards.DefaultParams()
	if r.Params != nil {
		if v := strings.TrimSpace(r.Params.MaxMultiplier); v != "" {
			mult, err := parseAmountString(v)
			if err != nil {
				return fmt.Errorf("maxMultiplier: %w", err)
			}
			params.MaxMultiplier = mult
		}
		if r.Params.SmoothingValue != 0 {
			params.SmoothingValue = r.Params.SmoothingValue
		}
		if r.Params.EarlyWithdrawalThreshold != 0 {
			params.EarlyWithdrawalThreshold = r.Params.EarlyWithdrawalThreshold
		}
		if r.Params.MaxRewardTokens != 0 {
			params.MaxRewardTokens = r.Params.MaxRewardTokens
		}
		if r.Params.ReductionPeriod != 0 {
			params.ReductionPeriod = r.Params.ReductionPeriod
		}
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	r.params = &params
	for i := range r.Tokens {
		if err := r.Tokens[i].validate(symbols); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
	}
	return nil
}

func (t *RewardTokenSpec) validate(symbols map[string]struct{}) error {
	if _, ok := symbols[strings.ToUpper(strings.TrimSpace(t.Symbol))]; !ok {
		return fmt.Errorf("unknown token %q", t.Symbol)
	}
	rate, err := parseAmountString(t.InitialRate)
	if err != nil {
		return fmt.Errorf("initialRate: %w", err)
	}
	factor := new(big.Int).Set(common.Wad)
	if strings.TrimSpace(t.ReductionFactor) != "" {
		if factor, err = parseAmountString(t.ReductionFactor); err != nil {
			return fmt.Errorf("reductionFactor: %w", err)
		}
	}
	if len(t.Markets) != len(t.Weights) {
		return fmt.Errorf("markets and weights length mismatch")
	}
	markets := make([][20]byte, len(t.Markets))
	for i, m := range t.Markets {
		if markets[i], err = ParseBech32Account(m); err != nil {
			return fmt.Errorf("markets[%d]: %w", i, err)
		}
	}
	t.rate = rate
	t.factor = factor
	t.markets = markets
	return nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
