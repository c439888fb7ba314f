package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEventsRecordSplitsModule(t *testing.T) {
	m := Events()
	m.Record("auction.started")
	m.Record("auction.started")
	m.Record("garbage")
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("auction", "auction.started")); got != 2 {
		t.Fatalf("auction.started = %v", got)
	}
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("unknown", "garbage")); got != 1 {
		t.Fatalf("garbage = %v", got)
	}
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("auction", "/auctions/{id}", 404, time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("auction", "/auctions/{id}", "404")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
	m.RecordThrottle("", "")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "unspecified")); got != 1 {
		t.Fatalf("throttles = %v", got)
	}
}
