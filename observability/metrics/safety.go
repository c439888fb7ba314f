package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SafetyMetrics tracks pool health and auction progress.
type SafetyMetrics struct {
	exchangeRate   *prometheus.GaugeVec
	underlying     *prometheus.GaugeVec
	postSlashing   *prometheus.GaugeVec
	activeAuctions prometheus.Gauge
	fundsRaised    *prometheus.CounterVec
	keeperRuns     *prometheus.CounterVec
	opFailures     *prometheus.CounterVec
}

var (
	safetyOnce     sync.Once
	safetyRegistry *SafetyMetrics
)

func Safety() *SafetyMetrics {
	safetyOnce.Do(func() {
		safetyRegistry = &SafetyMetrics{
			exchangeRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "safety_pool_exchange_rate",
				Help: "Underlying per share of each staking pool, 1.0 at parity.",
			}, []string{"pool"}),
			underlying: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "safety_pool_underlying_held",
				Help: "Collateral held by each staking pool in base units.",
			}, []string{"pool"}),
			postSlashing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "safety_pool_post_slashing",
				Help: "1 while the pool waits for its slashing auction to settle.",
			}, []string{"pool"}),
			activeAuctions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "safety_auctions_active",
				Help: "Number of auctions accepting purchases.",
			}),
			fundsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "safety_auction_funds_raised_total",
				Help: "Payment tokens raised by completed auctions.",
			}, []string{"token"}),
			keeperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "safety_keeper_runs_total",
				Help: "Auction keeper executions by outcome.",
			}, []string{"outcome"}),
			opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "safety_operation_failures_total",
				Help: "Rejected state-changing calls by module and error kind.",
			}, []string{"module", "kind"}),
		}
		prometheus.MustRegister(
			safetyRegistry.exchangeRate,
			safetyRegistry.underlying,
			safetyRegistry.postSlashing,
			safetyRegistry.activeAuctions,
			safetyRegistry.fundsRaised,
			safetyRegistry.keeperRuns,
			safetyRegistry.opFailures,
		)
	})
	return safetyRegistry
}

// ObservePool records the bookkeeping of a pool. rate is the exchange rate
// already scaled down to a plain ratio.
func (m *SafetyMetrics) ObservePool(pool string, rate, underlying float64, postSlashing bool) {
	if m == nil {
		return
	}
	if pool == "" {
		pool = "unknown"
	}
	m.exchangeRate.WithLabelValues(pool).Set(rate)
	m.underlying.WithLabelValues(pool).Set(underlying)
	flag := 0.0
	if postSlashing {
		flag = 1
	}
	m.postSlashing.WithLabelValues(pool).Set(flag)
}

func (m *SafetyMetrics) SetActiveAuctions(n int) {
	if m == nil {
		return
	}
	m.activeAuctions.Set(float64(n))
}

func (m *SafetyMetrics) AddFundsRaised(token string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	if token == "" {
		token = "unknown"
	}
	m.fundsRaised.WithLabelValues(token).Add(amount)
}

func (m *SafetyMetrics) RecordKeeperRun(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.keeperRuns.WithLabelValues(outcome).Inc()
}

func (m *SafetyMetrics) RecordFailure(module, kind string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if kind == "" {
		kind = "internal"
	}
	m.opFailures.WithLabelValues(module, kind).Inc()
}
