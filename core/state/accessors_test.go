package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"safetymodule/native/auction"
	"safetymodule/native/rewards"
	"safetymodule/native/safety"
	"safetymodule/native/stakepool"
)

func TestStakePoolAccessors(t *testing.T) {
	mgr, _ := newTestManager(t)
	addrB := [20]byte{0x02}
	addrA := [20]byte{0x01}

	for _, addr := range [][20]byte{addrB, addrA} {
		require.NoError(t, mgr.PutStakePool(&stakepool.Pool{
			Address:        addr,
			Underlying:     "STK",
			ExchangeRate:   big.NewInt(1),
			TotalShares:    big.NewInt(0),
			UnderlyingHeld: big.NewInt(0),
			MaxStakeAmount: big.NewInt(0),
		}))
	}
	list, err := mgr.StakePoolList()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{addrA, addrB}, list)

	pool, ok, err := mgr.StakePool(addrA)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "STK", pool.Underlying)

	holder, err := mgr.StakeHolder(addrA, [20]byte{0x09})
	require.NoError(t, err)
	require.Nil(t, holder)

	require.NoError(t, mgr.PutStakeHolder(addrA, [20]byte{0x09}, &stakepool.Holder{Shares: big.NewInt(5), CooldownStart: 77}))
	holder, err = mgr.StakeHolder(addrA, [20]byte{0x09})
	require.NoError(t, err)
	require.Equal(t, uint64(77), holder.CooldownStart)
	require.Equal(t, "5", holder.Shares.String())
}

func TestRewardAccessors(t *testing.T) {
	mgr, _ := newTestManager(t)
	market := [20]byte{0x01}
	user := [20]byte{0x02}

	require.NoError(t, mgr.PutRewardTokenConfig("pool", &rewards.TokenConfig{
		Token:           "RWD",
		InitialRate:     big.NewInt(10),
		ReductionFactor: big.NewInt(1),
		Markets:         [][20]byte{market},
		Weights:         []uint64{10_000},
	}))
	tokens, err := mgr.RewardTokenList("pool")
	require.NoError(t, err)
	require.Equal(t, []string{"RWD"}, tokens)
	other, err := mgr.RewardTokenList("perp")
	require.NoError(t, err)
	require.Empty(t, other)

	cfg, ok, err := mgr.RewardTokenConfig("pool", "RWD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10_000), cfg.WeightFor(market))

	claim, err := mgr.RewardClaimable("pool", user, "RWD")
	require.NoError(t, err)
	require.Equal(t, 0, claim.Sign())
	require.NoError(t, mgr.PutRewardClaimable("pool", user, "RWD", big.NewInt(12)))
	claim, err = mgr.RewardClaimable("pool", user, "RWD")
	require.NoError(t, err)
	require.Equal(t, "12", claim.String())

	require.NoError(t, mgr.PutRewardUserMarkets("pool", user, [][20]byte{market}))
	markets, err := mgr.RewardUserMarkets("pool", user)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{market}, markets)
}

func TestAuctionAndSafetyAccessors(t *testing.T) {
	mgr, _ := newTestManager(t)
	next, err := mgr.AuctionNextID()
	require.NoError(t, err)
	require.Zero(t, next)
	require.NoError(t, mgr.PutAuctionNextID(1))
	next, err = mgr.AuctionNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	require.NoError(t, mgr.PutAuction(&auction.Auction{
		ID:             0,
		Token:          "STK",
		PaymentToken:   "USD",
		LotPrice:       big.NewInt(50),
		InitialLotSize: big.NewInt(100),
		LotIncrement:   big.NewInt(10),
		Inventory:      big.NewInt(600),
		TokensSold:     big.NewInt(0),
		FundsRaised:    big.NewInt(0),
		NumLots:        5,
		RemainingLots:  5,
		Status:         auction.StatusActive,
	}))
	a, ok, err := mgr.Auction(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, auction.StatusActive, a.Status)

	pool := [20]byte{0x07}
	require.NoError(t, mgr.PutSafetyAuctionPool(0, pool))
	got, ok, err := mgr.SafetyAuctionPool(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pool, got)

	_, ok, err = mgr.SafetyParams()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mgr.PutSafetyParams(&safety.Params{MaxPercentUserLoss: 500}))
	params, ok, err := mgr.SafetyParams()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(500), params.MaxPercentUserLoss)
}
