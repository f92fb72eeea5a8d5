package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart engine activity.
type CartMetrics struct {
	operations *prometheus.CounterVec
	merges     *prometheus.CounterVec
	remote     *prometheus.HistogramVec
	items      prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart engine operations by outcome.",
	}, []string{"operation", "outcome"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_total",
		Help: "Guest cart merges by outcome.",
	}, []string{"outcome"})
	remote := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_remote_duration_seconds",
		Help:    "Latency of remote cart API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	items := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_items",
		Help: "Total item quantity in the last cart snapshot.",
	})
	reg.MustRegister(operations, merges, remote, items)
	return &CartMetrics{
		operations: operations,
		merges:     merges,
		remote:     remote,
		items:      items,
	}
}

func (c *CartMetrics) IncOperation(operation, outcome string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (c *CartMetrics) IncMerge(outcome string) {
	if c == nil || c.merges == nil {
		return
	}
	c.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveRemote records how long a remote call took.
func (c *CartMetrics) ObserveRemote(operation string, duration time.Duration) {
	if c == nil || c.remote == nil {
		return
	}
	c.remote.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func (c *CartMetrics) SetItems(count int) {
	if c == nil || c.items == nil {
		return
	}
	c.items.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
