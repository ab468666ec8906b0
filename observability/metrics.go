package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics records engine operation activity. It satisfies the market
// engine's MetricsRecorder interface.
type MarketMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	disputes   prometheus.Counter
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Market returns the lazily-initialised market metrics registry.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "otcmarket",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "otcmarket",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			disputes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "otcmarket",
				Subsystem: "engine",
				Name:      "disputes_total",
				Help:      "Total disputes raised against trades.",
			}),
		}
		prometheus.MustRegister(marketRegistry.operations, marketRegistry.latency, marketRegistry.disputes)
	})
	return marketRegistry
}

// ObserveOperation implements the market engine metrics hook.
func (m *MarketMetrics) ObserveOperation(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(seconds)
	if op == "raise_dispute" && outcome == "ok" {
		m.disputes.Inc()
	}
}
