package rewards_test

import (
	"errors"
	"math/big"
	"testing"

	"safetymodule/core/state"
	"safetymodule/native/common"
	"safetymodule/native/rewards"
	"safetymodule/storage"
)

var (
	gov      = [20]byte{0xA0}
	treasury = [20]byte{0xFE}
	marketA  = [20]byte{0x10}
	marketB  = [20]byte{0x11}
	alice    = [20]byte{0x01}
	bob      = [20]byte{0x02}
	carol    = [20]byte{0x03}
)

const t0 = 1_700_000_000

type fakeLedger struct {
	balances map[[20]byte]map[[20]byte]*big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[[20]byte]map[[20]byte]*big.Int)}
}

func (l *fakeLedger) set(market, user [20]byte, amount int64) {
	if l.balances[market] == nil {
		l.balances[market] = make(map[[20]byte]*big.Int)
	}
	l.balances[market][user] = big.NewInt(amount)
}

func (l *fakeLedger) SharesOf(market, user [20]byte) (*big.Int, error) {
	if v, ok := l.balances[market][user]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (l *fakeLedger) TotalShares(market [20]byte) (*big.Int, error) {
	total := big.NewInt(0)
	for _, v := range l.balances[market] {
		total.Add(total, v)
	}
	return total, nil
}

// Position and TotalLiquidity let the same fake back the position variant.
func (l *fakeLedger) Position(market, user [20]byte) (*big.Int, error) {
	return l.SharesOf(market, user)
}

func (l *fakeLedger) TotalLiquidity(market [20]byte) (*big.Int, error) {
	return l.TotalShares(market)
}

type fixture struct {
	mgr    *state.Manager
	dist   *rewards.Distributor
	ledger *fakeLedger
	clock  *common.ManualClock
}

func newFixture(t *testing.T, position bool) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	if err := mgr.SetRole(common.RoleGovernance, gov[:]); err != nil {
		t.Fatalf("set role: %v", err)
	}
	for _, sym := range []string{"RWD", "AUX"} {
		if err := mgr.RegisterToken(sym, sym, 18); err != nil {
			t.Fatalf("register token: %v", err)
		}
		if err := mgr.Mint(treasury[:], sym, big.NewInt(1_000_000_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	ledger := newFakeLedger()
	var dist *rewards.Distributor
	if position {
		dist = rewards.NewPositionDistributor("perp", ledger, treasury)
	} else {
		dist = rewards.NewPoolDistributor("pool", ledger, treasury)
	}
	clock := common.NewManualClock(t0)
	dist.SetState(mgr)
	dist.SetPauses(mgr)
	dist.SetClock(clock)
	return &fixture{mgr: mgr, dist: dist, ledger: ledger, clock: clock}
}

func (f *fixture) move(t *testing.T, market, user [20]byte, amount int64) {
	t.Helper()
	if err := f.dist.AccrueRewards(market, user); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	f.ledger.set(market, user, amount)
	if err := f.dist.UpdatePosition(market, user); err != nil {
		t.Fatalf("update position: %v", err)
	}
}

func (f *fixture) addToken(t *testing.T, token string, rate int64, markets [][20]byte, weights []uint64) {
	t.Helper()
	if err := f.dist.AddRewardToken(gov, token, big.NewInt(rate), common.Wad, markets, weights); err != nil {
		t.Fatalf("add reward token: %v", err)
	}
}

func (f *fixture) claimable(t *testing.T, user [20]byte, token string) *big.Int {
	t.Helper()
	v, err := f.dist.Claimable(user, token)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	return v
}

func TestSingleAccrualMatchesFormula(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 10)
	f.move(t, marketA, bob, 90)
	f.addToken(t, "RWD", 100, [][20]byte{marketA}, []uint64{10_000})

	f.clock.Advance(1_000)
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	// r*w*T*b*m/S = 100 * 1.0 * 1000 * 10 * 1.0 / 100
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("got %s want 10000", got)
	}
	if got := f.claimable(t, carol, "RWD"); got.Sign() != 0 {
		t.Fatalf("user that never interacted should have nothing, got %s", got)
	}
	acc, err := f.dist.CumulativeRewardPerShare(marketA, "RWD")
	if err != nil {
		t.Fatalf("accumulator: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(1_000), common.Wad)
	if acc.Cmp(want) != 0 {
		t.Fatalf("accumulator got %s want %s", acc, want)
	}
}

func TestMultiplierScalesAccrual(t *testing.T) {
	f := newFixture(t, false)
	f.move(t, marketA, alice, 100)
	f.addToken(t, "RWD", 1, [][20]byte{marketA}, []uint64{10_000})

	params, _ := f.dist.Params()
	f.clock.Advance(params.SmoothingValue)
	mult, err := f.dist.Multiplier(marketA, alice)
	if err != nil {
		t.Fatalf("multiplier: %v", err)
	}
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	base := new(big.Int).SetUint64(params.SmoothingValue)
	want := common.WadMul(base, mult)
	if got := f.claimable(t, alice, "RWD"); got.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestMultiplierResetsOnStakeFromZero(t *testing.T) {
	f := newFixture(t, false)
	f.move(t, marketA, alice, 100)
	f.clock.Advance(50_000)
	f.move(t, marketA, alice, 0)
	f.clock.Advance(50_000)
	f.move(t, marketA, alice, 10)
	mult, err := f.dist.Multiplier(marketA, alice)
	if err != nil {
		t.Fatalf("multiplier: %v", err)
	}
	if mult.Cmp(common.Wad) != 0 {
		t.Fatalf("expected 1.0 right after a stake from zero, got %s", mult)
	}
	f.clock.Advance(1)
	grown, _ := f.dist.Multiplier(marketA, alice)
	if grown.Cmp(mult) <= 0 {
		t.Fatalf("multiplier should grow while balance is unchanged")
	}
}

func TestTokenActivationStartsHistoryAtAddition(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 100)
	f.clock.Advance(10_000)
	f.addToken(t, "RWD", 5, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(100)
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected only post-activation rewards (500), got %s", got)
	}
}

func TestZeroSupplyAdvancesTimestampOnly(t *testing.T) {
	f := newFixture(t, false)
	f.addToken(t, "RWD", 5, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(1_000)
	if err := f.dist.UpdateMarketRewards(marketA); err != nil {
		t.Fatalf("update market: %v", err)
	}
	acc, _ := f.dist.CumulativeRewardPerShare(marketA, "RWD")
	if acc.Sign() != 0 {
		t.Fatalf("empty market must not accrue, got %s", acc)
	}
	// A later staker does not collect the idle period.
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 10)
	f.clock.Advance(10)
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected 50, got %s", got)
	}
}

func TestWeightsValidationAndCapacity(t *testing.T) {
	f := newFixture(t, false)
	err := f.dist.AddRewardToken(gov, "RWD", big.NewInt(1), common.Wad, [][20]byte{marketA, marketB}, []uint64{5_000, 4_999})
	if !errors.Is(err, rewards.ErrInvalidWeights) || !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	err = f.dist.AddRewardToken(alice, "RWD", big.NewInt(1), common.Wad, [][20]byte{marketA}, []uint64{10_000})
	if !errors.Is(err, common.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	err = f.dist.AddRewardToken(gov, "RWD", big.NewInt(1), big.NewInt(1), [][20]byte{marketA}, []uint64{10_000})
	if !errors.Is(err, rewards.ErrInvalidFactor) {
		t.Fatalf("expected factor error, got %v", err)
	}

	if err := f.dist.SetMaxRewardTokens(gov, 1); err != nil {
		t.Fatalf("set max tokens: %v", err)
	}
	f.addToken(t, "RWD", 1, [][20]byte{marketA}, []uint64{10_000})
	err = f.dist.AddRewardToken(gov, "AUX", big.NewInt(1), common.Wad, [][20]byte{marketB, marketA}, []uint64{5_000, 5_000})
	if !errors.Is(err, rewards.ErrTooManyRewardTokens) || !errors.Is(err, common.ErrCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if _, err := f.dist.TokenConfig("AUX"); !errors.Is(err, rewards.ErrTokenNotFound) {
		t.Fatalf("failed add must leave no config behind, got %v", err)
	}
	tokens, _ := f.dist.RewardTokens(marketB)
	if len(tokens) != 0 {
		t.Fatalf("failed add must not activate markets, got %v", tokens)
	}
	if err := f.dist.AddRewardToken(gov, "rwd", big.NewInt(1), common.Wad, [][20]byte{marketB}, []uint64{10_000}); !errors.Is(err, rewards.ErrTokenExists) {
		t.Fatalf("expected duplicate token error, got %v", err)
	}
}

func TestUpdateWeightsSettlesUnderOldAllocation(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 100)
	f.move(t, marketB, bob, 100)
	f.addToken(t, "RWD", 10, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(100)
	if err := f.dist.UpdateRewardWeights(gov, "RWD", [][20]byte{marketA, marketB}, []uint64{5_000, 5_000}); err != nil {
		t.Fatalf("update weights: %v", err)
	}
	f.clock.Advance(100)
	for _, m := range []struct {
		market [20]byte
		user   [20]byte
		want   int64
	}{{marketA, alice, 1_500}, {marketB, bob, 500}} {
		if err := f.dist.AccrueRewards(m.market, m.user); err != nil {
			t.Fatalf("accrue: %v", err)
		}
		if got := f.claimable(t, m.user, "RWD"); got.Cmp(big.NewInt(m.want)) != 0 {
			t.Fatalf("user %x got %s want %d", m.user, got, m.want)
		}
	}

	if err := f.dist.UpdateRewardWeights(gov, "RWD", [][20]byte{marketB}, []uint64{10_000}); err != nil {
		t.Fatalf("update weights: %v", err)
	}
	tokens, _ := f.dist.RewardTokens(marketA)
	if len(tokens) != 0 {
		t.Fatalf("dropped market should lose the token, got %v", tokens)
	}
}

func TestPausedTokenStopsAccruing(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 10)
	f.addToken(t, "RWD", 1, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(100)
	if err := f.dist.SetRewardTokenPaused(gov, "RWD", true); err != nil {
		t.Fatalf("pause token: %v", err)
	}
	f.clock.Advance(1_000)
	if err := f.dist.SetRewardTokenPaused(gov, "RWD", false); err != nil {
		t.Fatalf("unpause token: %v", err)
	}
	f.clock.Advance(100)
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected 200 outside the pause, got %s", got)
	}
}

func TestRemovedTokenKeepsSettledRewards(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 10)
	f.addToken(t, "RWD", 1, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(100)
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if err := f.dist.RemoveRewardToken(gov, "RWD"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	f.clock.Advance(100)
	if err := f.dist.AccrueRewards(marketA, alice); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100, got %s", got)
	}
	paid, err := f.dist.ClaimRewards(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid["RWD"].Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected removed token to remain claimable, got %v", paid)
	}
}

func (f *fixture) accrue(t *testing.T, market, user [20]byte) {
	t.Helper()
	if err := f.dist.AccrueRewards(market, user); err != nil {
		t.Fatalf("accrue: %v", err)
	}
}

func TestReAddedTokenStartsHistoryAtReactivation(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 10)
	f.addToken(t, "RWD", 1, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(1_000)
	if err := f.dist.RemoveRewardToken(gov, "RWD"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	f.move(t, marketA, bob, 10)
	f.addToken(t, "RWD", 1, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(10)
	f.accrue(t, marketA, bob)
	f.accrue(t, marketA, alice)

	if got := f.claimable(t, bob, "RWD"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("late joiner: expected 5, got %s", got)
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("existing holder: expected 5, got %s", got)
	}
}

func TestRestoredMarketStartsHistoryAtReactivation(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	both := [][20]byte{marketA, marketB}
	f.move(t, marketA, alice, 10)
	f.move(t, marketB, bob, 10)
	f.addToken(t, "RWD", 2, both, []uint64{5_000, 5_000})
	f.clock.Advance(100)

	if err := f.dist.UpdateRewardWeights(gov, "RWD", [][20]byte{marketA}, []uint64{10_000}); err != nil {
		t.Fatalf("drop market: %v", err)
	}
	f.move(t, marketB, carol, 10)
	f.clock.Advance(100)
	if err := f.dist.UpdateRewardWeights(gov, "RWD", both, []uint64{5_000, 5_000}); err != nil {
		t.Fatalf("restore market: %v", err)
	}
	f.clock.Advance(10)
	f.accrue(t, marketB, carol)
	f.accrue(t, marketB, bob)

	if got := f.claimable(t, carol, "RWD"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("late joiner: expected 5, got %s", got)
	}
	if got := f.claimable(t, bob, "RWD"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("existing holder: expected 5, got %s", got)
	}
	f.accrue(t, marketA, alice)
	// 100s at half weight, 100s at full weight, 10s at half weight.
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(310)) != 0 {
		t.Fatalf("untouched market: expected 310, got %s", got)
	}
}

func TestInflationRateDecays(t *testing.T) {
	f := newFixture(t, false)
	factor := new(big.Int).Mul(big.NewInt(2), common.Wad)
	if err := f.dist.AddRewardToken(gov, "RWD", big.NewInt(800), factor, [][20]byte{marketA}, []uint64{10_000}); err != nil {
		t.Fatalf("add: %v", err)
	}
	params, _ := f.dist.Params()
	f.clock.Advance(2*params.ReductionPeriod + 5)
	rate, err := f.dist.InflationRate("RWD")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected 800/2^2 = 200, got %s", rate)
	}
	if err := f.dist.UpdateInitialInflationRate(gov, "RWD", big.NewInt(1_600)); err != nil {
		t.Fatalf("update rate: %v", err)
	}
	rate, _ = f.dist.InflationRate("RWD")
	if rate.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected elapsed periods to keep decaying the new rate, got %s", rate)
	}
	if err := f.dist.UpdateReductionFactor(gov, "RWD", big.NewInt(1)); !errors.Is(err, rewards.ErrInvalidFactor) {
		t.Fatalf("expected factor validation, got %v", err)
	}
}

func TestClaimShortfallLeavesRemainder(t *testing.T) {
	f := newFixture(t, false)
	if err := f.dist.SetMaxMultiplier(gov, common.Wad); err != nil {
		t.Fatalf("set max multiplier: %v", err)
	}
	f.move(t, marketA, alice, 10)
	f.addToken(t, "RWD", 10_000_000, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(150)
	paid, err := f.dist.ClaimRewards(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid["RWD"].Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("expected the whole treasury paid, got %v", paid["RWD"])
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected remainder 500000000, got %s", got)
	}
	bal, _ := f.mgr.Balance(alice[:], "RWD")
	if bal.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("unexpected wallet balance %s", bal)
	}
}

func TestClaimRespectsModulePause(t *testing.T) {
	f := newFixture(t, false)
	if err := f.mgr.SetPaused("rewards", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.dist.ClaimRewards(alice); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	// Settlement hooks keep working so balance changes are never blocked.
	f.move(t, marketA, alice, 10)
}

func TestEarlyWithdrawalForfeitsProRata(t *testing.T) {
	f := newFixture(t, true)
	if err := f.dist.SetEarlyWithdrawalThreshold(gov, 1_000); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	f.ledger.set(marketA, alice, 100)
	if err := f.dist.UpdatePosition(marketA, alice); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.addToken(t, "RWD", 100, [][20]byte{marketA}, []uint64{10_000})
	f.clock.Advance(250)

	f.ledger.set(marketA, alice, 50)
	if err := f.dist.UpdatePosition(marketA, alice); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(6_250)) != 0 {
		t.Fatalf("expected 25000 * 250/1000 = 6250, got %s", got)
	}
	events := f.mgr.Events()
	forfeited := false
	for _, evt := range events {
		if evt.Type == "rewards.forfeited" && evt.Attributes["amount"] == "18750" {
			forfeited = true
		}
	}
	if !forfeited {
		t.Fatalf("expected forfeited event for 18750")
	}

	f.clock.Advance(1_000)
	f.ledger.set(marketA, alice, 40)
	if err := f.dist.UpdatePosition(marketA, alice); err != nil {
		t.Fatalf("update: %v", err)
	}
	// 1000s at 100/s with the whole market, balance 50 of 50.
	if got := f.claimable(t, alice, "RWD"); got.Cmp(big.NewInt(106_250)) != 0 {
		t.Fatalf("expected no penalty past the threshold, got %s", got)
	}
}
