// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Rebalance workflow metrics
	RebalanceRunsTotal *prometheus.CounterVec
	RebalanceDuration  prometheus.Histogram
	WorkflowBusySkips  prometheus.Counter

	// Market state metrics
	SpotPrice   prometheus.Gauge
	CurrentTick prometheus.Gauge
	InRange     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cl_rebalancer"
	}

	return &Metrics{
		RebalanceRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total rebalance runs by terminal action",
		}, []string{"action", "status"}),
		RebalanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "run_duration_seconds",
			Help:      "Duration of one rebalance run",
			Buckets:   []float64{0.5, 1, 5, 15, 60, 300, 1200},
		}),
		WorkflowBusySkips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "busy_skips_total",
			Help:      "Runs skipped because a workflow was already holding the lock",
		}),

		SpotPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "spot_price",
			Help:      "Last observed pool spot price",
		}),
		CurrentTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "current_tick",
			Help:      "Last observed pool tick",
		}),
		InRange: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "position_in_range",
			Help:      "1 when the spot price is inside the position range",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records one finished rebalance run.
func (m *Metrics) ObserveRun(action, status string, seconds float64) {
	m.RebalanceRunsTotal.WithLabelValues(action, status).Inc()
	m.RebalanceDuration.Observe(seconds)
}

// ObserveMarket updates the market gauges from a status read.
func (m *Metrics) ObserveMarket(price float64, tick int64, inRange bool) {
	m.SpotPrice.Set(price)
	m.CurrentTick.Set(float64(tick))
	if inRange {
		m.InRange.Set(1)
	} else {
		m.InRange.Set(0)
	}
}
