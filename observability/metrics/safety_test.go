package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSafetyMetricsObservePool(t *testing.T) {
	m := Safety()
	m.ObservePool("smkt1pool", 0.9, 900, true)
	if got := testutil.ToFloat64(m.exchangeRate.WithLabelValues("smkt1pool")); got != 0.9 {
		t.Fatalf("exchange rate gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.postSlashing.WithLabelValues("smkt1pool")); got != 1 {
		t.Fatalf("post slashing gauge = %v", got)
	}
	m.ObservePool("smkt1pool", 1.1, 1100, false)
	if got := testutil.ToFloat64(m.postSlashing.WithLabelValues("smkt1pool")); got != 0 {
		t.Fatalf("post slashing gauge = %v", got)
	}
}

func TestSafetyMetricsCounters(t *testing.T) {
	m := Safety()
	before := testutil.ToFloat64(m.keeperRuns.WithLabelValues("completed"))
	m.RecordKeeperRun("completed")
	if got := testutil.ToFloat64(m.keeperRuns.WithLabelValues("completed")); got != before+1 {
		t.Fatalf("keeper runs = %v want %v", got, before+1)
	}
	m.AddFundsRaised("USD", 0)
	m.AddFundsRaised("USD", 250)
	if got := testutil.ToFloat64(m.fundsRaised.WithLabelValues("USD")); got != 250 {
		t.Fatalf("funds raised = %v", got)
	}
	var nilMetrics *SafetyMetrics
	nilMetrics.RecordFailure("auction", "timing")
}
