package rpc

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"safetymodule/crypto"
	"safetymodule/native/auction"
)

type poolResult struct {
	Address         string `json:"address"`
	Underlying      string `json:"underlying"`
	ExchangeRate    string `json:"exchangeRate"`
	TotalShares     string `json:"totalShares"`
	UnderlyingHeld  string `json:"underlyingHeld"`
	PostSlashing    bool   `json:"postSlashing"`
	CooldownSeconds uint64 `json:"cooldownSeconds"`
	UnstakeWindow   uint64 `json:"unstakeWindow"`
	MaxStakeAmount  string `json:"maxStakeAmount,omitempty"`
}

type holderResult struct {
	Pool          string `json:"pool"`
	Holder        string `json:"holder"`
	Shares        string `json:"shares"`
	Redeemable    string `json:"redeemable"`
	CooldownStart uint64 `json:"cooldownStart"`
}

type tokenResult struct {
	Token            string   `json:"token"`
	InitialRate      string   `json:"initialRate"`
	CurrentRate      string   `json:"currentRate"`
	ReductionFactor  string   `json:"reductionFactor"`
	InitialTimestamp uint64   `json:"initialTimestamp"`
	Markets          []string `json:"markets"`
	Weights          []uint64 `json:"weights"`
	Paused           bool     `json:"paused"`
	Removed          bool     `json:"removed"`
}

type marketTokenResult struct {
	Token              string `json:"token"`
	CumulativePerShare string `json:"cumulativePerShare"`
}

type auctionResult struct {
	ID                uint64 `json:"id"`
	Token             string `json:"token"`
	PaymentToken      string `json:"paymentToken"`
	Status            string `json:"status"`
	LotPrice          string `json:"lotPrice"`
	CurrentLotSize    string `json:"currentLotSize"`
	LotIncrement      string `json:"lotIncrement"`
	LotIncreasePeriod uint64 `json:"lotIncreasePeriod"`
	NumLots           uint64 `json:"numLots"`
	RemainingLots     uint64 `json:"remainingLots"`
	Inventory         string `json:"inventory"`
	TokensSold        string `json:"tokensSold"`
	FundsRaised       string `json:"fundsRaised"`
	StartTime         uint64 `json:"startTime"`
	EndTime           uint64 `json:"endTime"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func market(raw [20]byte) string {
	return crypto.FromRaw(crypto.MarketPrefix, raw).String()
}

func account(raw [20]byte) string {
	return crypto.FromRaw(crypto.AccountPrefix, raw).String()
}

// pathAddress decodes a bech32 path parameter, writing 400 on failure.
func pathAddress(w http.ResponseWriter, r *http.Request, name string) ([20]byte, bool) {
	raw, err := crypto.ParseRaw(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" address: "+err.Error())
		return [20]byte{}, false
	}
	return raw, true
}

func (s *Server) handleListPools(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	addrs, err := s.backends.Pools.Pools()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, market(addr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": out})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	pool, err := s.backends.Pools.Pool(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	res := poolResult{
		Address:         market(pool.Address),
		Underlying:      pool.Underlying,
		ExchangeRate:    amount(pool.ExchangeRate),
		TotalShares:     amount(pool.TotalShares),
		UnderlyingHeld:  amount(pool.UnderlyingHeld),
		PostSlashing:    pool.PostSlashing,
		CooldownSeconds: pool.CooldownSeconds,
		UnstakeWindow:   pool.UnstakeWindow,
	}
	if pool.MaxStakeAmount != nil && pool.MaxStakeAmount.Sign() > 0 {
		res.MaxStakeAmount = pool.MaxStakeAmount.String()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetHolder(w http.ResponseWriter, r *http.Request) {
	pool, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	holder, ok := pathAddress(w, r, "holder")
	if !ok {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	shares, err := s.backends.Pools.SharesOf(pool, holder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	start, err := s.backends.Pools.CooldownStart(pool, holder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	redeemable, err := s.backends.Pools.PreviewRedeem(pool, shares)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holderResult{
		Pool:          market(pool),
		Holder:        account(holder),
		Shares:        amount(shares),
		Redeemable:    amount(redeemable),
		CooldownStart: start,
	})
}

func (s *Server) handleRewardParams(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	params, err := s.backends.Rewards.Params()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"maxMultiplier":            amount(params.MaxMultiplier),
		"smoothingValue":           params.SmoothingValue,
		"earlyWithdrawalThreshold": params.EarlyWithdrawalThreshold,
		"maxRewardTokens":          params.MaxRewardTokens,
		"reductionPeriod":          params.ReductionPeriod,
	})
}

func (s *Server) handleRewardTokens(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	tokens, err := s.backends.Rewards.AllRewardTokens()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if tokens == nil {
		tokens = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (s *Server) handleRewardToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	s.lock.Lock()
	defer s.lock.Unlock()
	cfg, err := s.backends.Rewards.TokenConfig(token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rate, err := s.backends.Rewards.InflationRate(token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	markets := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		markets = append(markets, market(m))
	}
	writeJSON(w, http.StatusOK, tokenResult{
		Token:            cfg.Token,
		InitialRate:      amount(cfg.InitialRate),
		CurrentRate:      amount(rate),
		ReductionFactor:  amount(cfg.ReductionFactor),
		InitialTimestamp: cfg.InitialTimestamp,
		Markets:          markets,
		Weights:          append([]uint64{}, cfg.Weights...),
		Paused:           cfg.Paused,
		Removed:          cfg.Removed,
	})
}

func (s *Server) handleMarketRewards(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "market")
	if !ok {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	tokens, err := s.backends.Rewards.RewardTokens(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]marketTokenResult, 0, len(tokens))
	for _, token := range tokens {
		acc, err := s.backends.Rewards.CumulativeRewardPerShare(addr, token)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		out = append(out, marketTokenResult{Token: token, CumulativePerShare: amount(acc)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"market": market(addr), "tokens": out})
}

func (s *Server) handleUserMultiplier(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "market")
	if !ok {
		return
	}
	user, ok := pathAddress(w, r, "user")
	if !ok {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	m, err := s.backends.Rewards.Multiplier(addr, user)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"market":     market(addr),
		"user":       account(user),
		"multiplier": amount(m),
	})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	user, ok := pathAddress(w, r, "user")
	if !ok {
		return
	}
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.backends.Rewards.Claimable(user, token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":      account(user),
		"token":     strings.ToUpper(token),
		"claimable": amount(v),
	})
}

func (s *Server) handleExpiredAuctions(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	ids, err := s.backends.Auctions.ExpiredAuctions()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": ids})
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	a, err := s.backends.Auctions.Auction(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	lot := big.NewInt(0)
	if a.Status == auction.StatusActive {
		if lot, err = s.backends.Auctions.CurrentLotSize(id); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, auctionResult{
		ID:                a.ID,
		Token:             a.Token,
		PaymentToken:      a.PaymentToken,
		Status:            a.Status.String(),
		LotPrice:          amount(a.LotPrice),
		CurrentLotSize:    amount(lot),
		LotIncrement:      amount(a.LotIncrement),
		LotIncreasePeriod: a.LotIncreasePeriod,
		NumLots:           a.NumLots,
		RemainingLots:     a.RemainingLots,
		Inventory:         amount(a.Inventory),
		TokensSold:        amount(a.TokensSold),
		FundsRaised:       amount(a.FundsRaised),
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
	})
}

func (s *Server) handleSafetyParams(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	params, err := s.backends.Safety.Params()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"maxPercentUserLoss": params.MaxPercentUserLoss})
}

func (s *Server) handlePoolAuction(w http.ResponseWriter, r *http.Request) {
	pool, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	link, found, err := s.backends.Safety.PoolAuction(pool)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no auction recorded for pool")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":      market(link.Pool),
		"auctionId": link.AuctionID,
		"active":    link.Active,
	})
}
