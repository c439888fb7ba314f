package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the registry counting domain events drained from state.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "safety",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed engine events segmented by module and type.",
			}, []string{"module", "type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counter for an event type such as "auction.started".
// The module label is the prefix before the first dot.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		eventType = "unknown"
	}
	module, _, found := strings.Cut(eventType, ".")
	if !found {
		module = "unknown"
	}
	m.emitted.WithLabelValues(module, eventType).Inc()
}
