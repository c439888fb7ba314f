package genesis

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"safetymodule/core/state"
	"safetymodule/crypto"
	"safetymodule/native/common"
	"safetymodule/native/rewards"
	"safetymodule/native/safety"
	"safetymodule/native/stakepool"
	"safetymodule/storage"
)

var (
	govAddr   = crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xA0}, 20)).String()
	aliceAddr = crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, 20)).String()
	poolAddr  = crypto.MustNewAddress(crypto.MarketPrefix, bytes.Repeat([]byte{0xC0}, 20)).String()
	treasury  = [20]byte{0xFE}
)

func sampleSpec() GenesisSpec {
	return GenesisSpec{
		Tokens: []TokenSpec{
			{Symbol: "STK", Name: "Staked", Decimals: 18},
			{Symbol: "RWD", Name: "Reward", Decimals: 18},
		},
		Alloc: map[string]map[string]string{
			aliceAddr: {"STK": "5000"},
		},
		Roles: map[string][]string{
			common.RoleGovernance: {govAddr},
		},
		Pauses: map[string]bool{"auction": true},
		Pools: []PoolSpec{{
			Address:         poolAddr,
			Underlying:      "stk",
			CooldownSeconds: 864000,
			UnstakeWindow:   172800,
			MaxStakeAmount:  "1000000",
		}},
		Rewards: &RewardsSpec{
			Params: &RewardParamsSpec{SmoothingValue: 3600},
			Tokens: []RewardTokenSpec{{
				Symbol:      "RWD",
				InitialRate: "100",
				Markets:     []string{poolAddr},
				Weights:     []uint64{10000},
			}},
		},
		Safety: &SafetySpec{MaxPercentUserLoss: 2500},
	}
}

type wired struct {
	mgr     *state.Manager
	pools   *stakepool.Engine
	rewards *rewards.Distributor
	safety  *safety.Engine
}

func newEngines(db storage.Database) wired {
	mgr := state.NewManager(db)
	pools := stakepool.NewEngine()
	pools.SetState(mgr)
	pools.SetPauses(mgr)
	dist := rewards.NewPoolDistributor("pool", pools, treasury)
	dist.SetState(mgr)
	dist.SetPauses(mgr)
	orch := safety.NewEngine([20]byte{0x5A})
	orch.SetState(mgr)
	orch.SetPauses(mgr)
	return wired{mgr: mgr, pools: pools, rewards: dist, safety: orch}
}

func (w wired) engines() Engines {
	return Engines{Pools: w.pools, Rewards: w.rewards, Safety: w.safety}
}

func writeSpec(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadJSONAndApply(t *testing.T) {
	raw, err := json.Marshal(sampleSpec())
	require.NoError(t, err)
	spec, err := LoadGenesisSpec(writeSpec(t, "genesis.json", raw))
	require.NoError(t, err)

	db := storage.NewMemDB()
	w := newEngines(db)
	require.NoError(t, Apply(spec, w.mgr, w.engines()))

	// Reopen over the same database to prove the state was committed.
	fresh := newEngines(db)
	alice, err := ParseBech32Account(aliceAddr)
	require.NoError(t, err)
	bal, err := fresh.mgr.Balance(alice[:], "STK")
	require.NoError(t, err)
	require.Equal(t, int64(5000), bal.Int64())

	gov, err := ParseBech32Account(govAddr)
	require.NoError(t, err)
	require.True(t, fresh.mgr.HasRole(common.RoleGovernance, gov[:]))
	require.True(t, fresh.mgr.IsPaused("auction"))

	pool, err := ParseBech32Account(poolAddr)
	require.NoError(t, err)
	record, err := fresh.pools.Pool(pool)
	require.NoError(t, err)
	require.Equal(t, "STK", record.Underlying)
	require.Equal(t, uint64(864000), record.CooldownSeconds)
	require.Equal(t, int64(1000000), record.MaxStakeAmount.Int64())

	params, err := fresh.rewards.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(3600), params.SmoothingValue)
	require.Equal(t, 0, params.MaxMultiplier.Cmp(rewards.DefaultMaxMultiplier))
	tokens, err := fresh.rewards.RewardTokens(pool)
	require.NoError(t, err)
	require.Equal(t, []string{"RWD"}, tokens)
	cfg, err := fresh.rewards.TokenConfig("RWD")
	require.NoError(t, err)
	require.Equal(t, 0, cfg.ReductionFactor.Cmp(common.Wad))
	require.Equal(t, 0, cfg.InitialRate.Cmp(big.NewInt(100)))

	safetyParams, err := fresh.safety.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(2500), safetyParams.MaxPercentUserLoss)
}

func TestLoadYAML(t *testing.T) {
	doc := strings.Join([]string{
		"tokens:",
		"  - symbol: STK",
		"    name: Staked",
		"    decimals: 18",
		"roles:",
		"  GOVERNANCE: [" + govAddr + "]",
		"pools:",
		"  - address: " + poolAddr,
		"    underlying: STK",
		"    cooldownSeconds: 60",
		"    unstakeWindow: 60",
		"safety:",
		"  maxPercentUserLoss: 5000",
		"",
	}, "\n")
	spec, err := LoadGenesisSpec(writeSpec(t, "genesis.yaml", []byte(doc)))
	require.NoError(t, err)
	require.Len(t, spec.Pools, 1)
	require.Equal(t, uint64(5000), spec.Safety.MaxPercentUserLoss)

	w := newEngines(storage.NewMemDB())
	require.NoError(t, Apply(spec, w.mgr, w.engines()))
}

func TestLoadRejectsInvalidSpecs(t *testing.T) {
	cases := map[string]struct {
		mutate func(*GenesisSpec)
		want   string
	}{
		"unknown alloc token": {
			mutate: func(s *GenesisSpec) { s.Alloc[aliceAddr]["FOO"] = "1" },
			want:   "unknown token",
		},
		"negative alloc": {
			mutate: func(s *GenesisSpec) { s.Alloc[aliceAddr]["STK"] = "-1" },
			want:   "must not be negative",
		},
		"foreign prefix": {
			mutate: func(s *GenesisSpec) {
				s.Roles[common.RoleGovernance] = []string{crypto.MustNewAddress("nhb", bytes.Repeat([]byte{1}, 20)).String()}
			},
			want: "unsupported hrp",
		},
		"missing governance": {
			mutate: func(s *GenesisSpec) { s.Roles = nil },
			want:   "GOVERNANCE member required",
		},
		"weights mismatch": {
			mutate: func(s *GenesisSpec) { s.Rewards.Tokens[0].Weights = nil },
			want:   "length mismatch",
		},
		"bad multiplier": {
			mutate: func(s *GenesisSpec) { s.Rewards.Params.MaxMultiplier = "1" },
			want:   "max multiplier",
		},
		"bad max loss": {
			mutate: func(s *GenesisSpec) { s.Safety.MaxPercentUserLoss = 20000 },
			want:   "maxPercentUserLoss",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			spec := sampleSpec()
			tc.mutate(&spec)
			raw, err := json.Marshal(spec)
			require.NoError(t, err)
			_, err = LoadGenesisSpec(writeSpec(t, "genesis.json", raw))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := LoadGenesisSpec(writeSpec(t, "genesis.json", []byte(`{"tokens":[],"bogus":1}`)))
	require.Error(t, err)
	_, err = LoadGenesisSpec(writeSpec(t, "genesis.yml", []byte("bogus: 1\n")))
	require.Error(t, err)
}

func TestApplyRevertsOnEngineFailure(t *testing.T) {
	raw, err := json.Marshal(sampleSpec())
	require.NoError(t, err)
	spec, err := LoadGenesisSpec(writeSpec(t, "genesis.json", raw))
	require.NoError(t, err)

	db := storage.NewMemDB()
	w := newEngines(db)
	engines := w.engines()
	engines.Rewards = nil
	require.Error(t, Apply(spec, w.mgr, engines))

	fresh := newEngines(db)
	require.False(t, fresh.mgr.TokenExists("STK"), "failed genesis must not commit")
}
