package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrderMetrics struct {
	Created   prometheus.Counter
	Rejected  *prometheus.CounterVec
	LatencyMS prometheus.Histogram
}

// NewOrderMetrics registers the order counters on reg; pass a fresh registry
// in tests to avoid duplicate registration.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	created := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "orders_created_total",
		Help:      "Total number of successfully created orders.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "orders_rejected_total",
		Help:      "Total number of rejected order requests.",
	}, []string{"reason"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "order_creation_duration_ms",
		Help:      "Order creation latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	reg.MustRegister(created, rejected, latency)
	return &OrderMetrics{Created: created, Rejected: rejected, LatencyMS: latency}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
