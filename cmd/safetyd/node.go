package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"safetymodule/config"
	"safetymodule/core/events"
	"safetymodule/core/genesis"
	"safetymodule/core/state"
	"safetymodule/crypto"
	"safetymodule/native/auction"
	"safetymodule/native/common"
	"safetymodule/native/rewards"
	"safetymodule/native/safety"
	"safetymodule/native/stakepool"
	"safetymodule/observability"
	"safetymodule/observability/logging"
	"safetymodule/observability/metrics"
	"safetymodule/rpc"
	"safetymodule/storage"
)

// poolRewardsNamespace keys the distributor that pays stakers.
const poolRewardsNamespace = "pool"

// hostedModules are the engines this daemon runs, by pause module name.
var hostedModules = []string{"stakepool", "rewards", "auction", "safety"}

// moduleAccount derives the fallback address of a module account from its
// name.
func moduleAccount(name string) [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("safetymodule/"+name))[12:])
	return out
}

type accounts struct {
	orchestrator [20]byte
	auctionVault [20]byte
	treasury     [20]byte
}

func resolveAccounts(cfg config.Accounts) (accounts, error) {
	var (
		out accounts
		err error
	)
	if out.orchestrator, err = config.Account(cfg.Orchestrator, moduleAccount("orchestrator")); err != nil {
		return out, fmt.Errorf("orchestrator account: %w", err)
	}
	if out.auctionVault, err = config.Account(cfg.AuctionVault, moduleAccount("auction")); err != nil {
		return out, fmt.Errorf("auction account: %w", err)
	}
	if out.treasury, err = config.Account(cfg.RewardTreasury, moduleAccount("treasury")); err != nil {
		return out, fmt.Errorf("treasury account: %w", err)
	}
	return out, nil
}

// node owns the state manager and the engines wired over it. mu serialises
// every state access; the engines themselves are not safe for concurrent
// use.
type node struct {
	mu       sync.Mutex
	logger   *slog.Logger
	state    *state.Manager
	pools    *stakepool.Engine
	rewards  *rewards.Distributor
	auctions *auction.Engine
	safety   *safety.Engine
}

func newNode(db storage.Database, accts accounts, clock common.Clock, logger *slog.Logger) *node {
	if logger == nil {
		logger = slog.Default()
	}
	mgr := state.NewManager(db)

	pools := stakepool.NewEngine()
	pools.SetState(mgr)
	pools.SetPauses(mgr)
	pools.SetClock(clock)
	pools.SetOrchestrator(accts.orchestrator)

	dist := rewards.NewPoolDistributor(poolRewardsNamespace, pools, accts.treasury)
	dist.SetState(mgr)
	dist.SetPauses(mgr)
	dist.SetClock(clock)
	pools.SetRewardHook(dist)

	auctions := auction.NewEngine(accts.auctionVault)
	auctions.SetState(mgr)
	auctions.SetPauses(mgr)
	auctions.SetClock(clock)

	orch := safety.NewEngine(accts.orchestrator)
	orch.SetState(mgr)
	orch.SetPauses(mgr)
	orch.SetEngines(pools, auctions)
	auctions.SetOrchestrator(accts.orchestrator, orch)

	return &node{
		logger:   logger,
		state:    mgr,
		pools:    pools,
		rewards:  dist,
		auctions: auctions,
		safety:   orch,
	}
}

// bootstrap applies the genesis file to an empty database and engages the
// pause flags set in the node configuration. A false flag leaves the stored
// state alone.
func (n *node) bootstrap(cfg *config.Config) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	tokens, err := n.state.TokenList()
	if err != nil {
		return fmt.Errorf("read token list: %w", err)
	}
	if len(tokens) == 0 && cfg.GenesisFile != "" {
		spec, err := genesis.LoadGenesisSpec(cfg.GenesisFile)
		if err != nil {
			return err
		}
		if err := genesis.Apply(spec, n.state, genesis.Engines{
			Pools:   n.pools,
			Rewards: n.rewards,
			Safety:  n.safety,
		}); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		n.logger.Info("genesis applied", slog.String("file", cfg.GenesisFile), slog.Int("tokens", len(spec.Tokens)))
	}

	for module, paused := range cfg.Pauses.Modules() {
		if !paused || n.state.IsPaused(module) {
			continue
		}
		if err := n.state.SetPaused(module, true); err != nil {
			n.state.Discard()
			return fmt.Errorf("seed pause %s: %w", module, err)
		}
		n.logger.Warn("module paused by config", slog.String("module", module))
	}
	return n.flushLocked()
}

// flushLocked drains the pending events into the log and metrics, then
// commits. Callers hold mu.
func (n *node) flushLocked() error {
	for _, evt := range n.state.Events() {
		n.logger.Info("engine event", logging.EventArgs(evt)...)
		observability.Events().Record(evt.Type)
		if evt.Type == events.TypeAuctionEnded {
			n.recordProceeds(evt.Attributes)
		}
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return fmt.Errorf("commit state: %w", err)
	}
	n.observeLocked()
	return nil
}

func (n *node) recordProceeds(attrs map[string]string) {
	id, err := strconv.ParseUint(attrs["id"], 10, 64)
	if err != nil {
		return
	}
	a, err := n.auctions.Auction(id)
	if err != nil {
		return
	}
	metrics.Safety().AddFundsRaised(a.PaymentToken, observability.BigToFloat(a.FundsRaised))
}

// observeLocked refreshes the pool and auction gauges.
func (n *node) observeLocked() {
	addrs, err := n.pools.Pools()
	if err != nil {
		n.logger.Error("list pools", slog.Any("error", err))
		return
	}
	active := 0
	for _, addr := range addrs {
		pool, err := n.pools.Pool(addr)
		if err != nil {
			continue
		}
		rate, _ := new(big.Float).Quo(new(big.Float).SetInt(pool.ExchangeRate), new(big.Float).SetInt(common.Wad)).Float64()
		label := crypto.FromRaw(crypto.MarketPrefix, addr).String()
		metrics.Safety().ObservePool(label, rate, observability.BigToFloat(pool.UnderlyingHeld), pool.PostSlashing)
		if link, ok, err := n.safety.PoolAuction(addr); err == nil && ok && link.Active {
			active++
		}
	}
	metrics.Safety().SetActiveAuctions(active)
}

// sweep completes every auction whose time limit has passed and commits the
// result. It runs on the keeper schedule.
func (n *node) sweep() {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids, err := n.auctions.ExpiredAuctions()
	if err != nil {
		n.logger.Error("keeper: list expired auctions", slog.Any("error", err))
		metrics.Safety().RecordKeeperRun("error")
		return
	}
	completed := 0
	for _, id := range ids {
		if err := n.auctions.CompleteAuction(id); err != nil {
			n.logger.Error("keeper: complete auction", slog.Uint64("id", id), slog.Any("error", err))
			metrics.Safety().RecordFailure("auction", failureKind(err))
			continue
		}
		completed++
	}
	if err := n.flushLocked(); err != nil {
		n.logger.Error("keeper: commit", slog.Any("error", err))
		metrics.Safety().RecordKeeperRun("error")
		return
	}
	if completed > 0 {
		n.logger.Info("keeper: auctions completed", slog.Int("count", completed))
	}
	metrics.Safety().RecordKeeperRun("ok")
}

func failureKind(err error) string {
	if errors.Is(err, common.ErrModulePaused) {
		return "paused"
	}
	if kind := common.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal"
}

func (n *node) backends() rpc.Backends {
	return rpc.Backends{
		Pools:    n.pools,
		Rewards:  n.rewards,
		Auctions: n.auctions,
		Safety:   n.safety,
	}
}
