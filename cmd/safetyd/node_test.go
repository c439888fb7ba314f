package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"safetymodule/config"
	"safetymodule/crypto"
	"safetymodule/native/auction"
	"safetymodule/native/common"
	"safetymodule/native/safety"
	"safetymodule/native/stakepool"
	"safetymodule/observability/logging"
	"safetymodule/storage"
)

var (
	gov      = [20]byte{0xA0}
	alice    = [20]byte{0x01}
	poolAddr = [20]byte{0xC0}
)

const start = 1_700_000_000

func newTestNode(t *testing.T, db storage.Database, clock common.Clock) (*node, *bytes.Buffer) {
	t.Helper()
	accts, err := resolveAccounts(config.Accounts{})
	require.NoError(t, err)
	var buf bytes.Buffer
	logger := logging.SetupWriter(&buf, "safetyd", "test", slog.LevelInfo)
	return newNode(db, accts, clock, logger), &buf
}

func TestResolveAccounts(t *testing.T) {
	accts, err := resolveAccounts(config.Accounts{})
	require.NoError(t, err)
	require.Equal(t, moduleAccount("orchestrator"), accts.orchestrator)
	require.NotEqual(t, accts.orchestrator, accts.auctionVault)
	require.NotEqual(t, accts.auctionVault, accts.treasury)

	custom := crypto.FromRaw(crypto.AccountPrefix, [20]byte{0x77}).String()
	accts, err = resolveAccounts(config.Accounts{Orchestrator: custom})
	require.NoError(t, err)
	require.Equal(t, [20]byte{0x77}, accts.orchestrator)

	_, err = resolveAccounts(config.Accounts{RewardTreasury: "bogus"})
	require.Error(t, err)
}

const genesisYAML = `tokens:
  - symbol: STK
    name: Staked
    decimals: 18
alloc: {}
roles:
  GOVERNANCE:
    - %s
pools:
  - address: %s
    underlying: STK
    cooldownSeconds: 86400
    unstakeWindow: 86400
`

func TestBootstrapAppliesGenesisOnce(t *testing.T) {
	db := storage.NewMemDB()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	contents := []byte(fmt.Sprintf(genesisYAML,
		crypto.FromRaw(crypto.AccountPrefix, gov).String(),
		crypto.FromRaw(crypto.MarketPrefix, poolAddr).String(),
	))
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg := config.Default()
	cfg.GenesisFile = path
	cfg.Pauses.Auction = true

	n, logs := newTestNode(t, db, common.NewManualClock(start))
	require.NoError(t, n.bootstrap(cfg))
	pools, err := n.pools.Pools()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{poolAddr}, pools)
	require.True(t, n.state.IsPaused("auction"))
	require.False(t, n.state.IsPaused("stakepool"))
	require.Contains(t, logs.String(), "genesis applied")

	reopened, logs := newTestNode(t, db, common.NewManualClock(start))
	require.NoError(t, reopened.bootstrap(cfg))
	require.NotContains(t, logs.String(), "genesis applied")
	require.True(t, reopened.state.IsPaused("auction"))
}

func TestSweepCompletesExpiredAuctions(t *testing.T) {
	db := storage.NewMemDB()
	clock := common.NewManualClock(start)
	n, logs := newTestNode(t, db, clock)

	require.NoError(t, n.state.RegisterToken("STK", "Staked", 18))
	require.NoError(t, n.state.RegisterToken("USD", "Dollar", 6))
	require.NoError(t, n.state.SetRole(common.RoleGovernance, gov[:]))
	require.NoError(t, n.state.Mint(alice[:], "STK", big.NewInt(1_000)))
	require.NoError(t, n.pools.RegisterPool(gov, stakepool.PoolConfig{
		Address:         poolAddr,
		Underlying:      "STK",
		CooldownSeconds: 86_400,
		UnstakeWindow:   86_400,
	}))
	_, err := n.pools.Stake(poolAddr, alice, alice, big.NewInt(1_000))
	require.NoError(t, err)
	id, err := n.safety.SlashAndStartAuction(gov, poolAddr, safety.SlashParams{
		Amount:         big.NewInt(300),
		PaymentToken:   "USD",
		NumLots:        3,
		LotPrice:       big.NewInt(100),
		InitialLotSize: big.NewInt(100),
		LotIncrement:   big.NewInt(0),
		TimeLimit:      3_600,
	})
	require.NoError(t, err)
	require.NoError(t, n.flushLocked())
	require.Contains(t, logs.String(), "auction.started")

	n.sweep()
	status, err := n.auctions.Status(id)
	require.NoError(t, err)
	require.Equal(t, auction.StatusActive, status)

	clock.Advance(3_601)
	n.sweep()
	require.Empty(t, n.state.Events())
	require.Contains(t, logs.String(), "auction.ended")

	reopened, _ := newTestNode(t, db, clock)
	status, err = reopened.auctions.Status(id)
	require.NoError(t, err)
	require.Equal(t, auction.StatusTimedOut, status)
	pool, err := reopened.pools.Pool(poolAddr)
	require.NoError(t, err)
	require.False(t, pool.PostSlashing)
	require.Equal(t, int64(1_000), pool.UnderlyingHeld.Int64())
	link, ok, err := reopened.safety.PoolAuction(poolAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, link.Active)
}

func TestFailureKind(t *testing.T) {
	require.Equal(t, "paused", failureKind(common.ErrModulePaused))
	require.Equal(t, common.ErrTiming.Error(), failureKind(auction.ErrAuctionExpired))
	require.Equal(t, "internal", failureKind(os.ErrClosed))
}
