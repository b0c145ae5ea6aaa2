package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics holds the prometheus collectors for the order lifecycle. A nil
// *OrderMetrics is valid and records nothing, which keeps unit tests free of
// global registry state.
type OrderMetrics struct {
	ordersCreated          prometheus.Counter
	ordersPaid             prometheus.Counter
	statusChanges          *prometheus.CounterVec
	paymentSessionFailures prometheus.Counter
	createDuration         prometheus.Histogram
}

// MustNewOrderMetrics creates and registers the order metrics.
func MustNewOrderMetrics() *OrderMetrics {
	m := &OrderMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created.",
		}),
		ordersPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "paid_total",
			Help:      "Total number of orders marked paid.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "status_changes_total",
			Help:      "Total number of order status changes.",
		}, []string{"status"}),
		paymentSessionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "payment_session_failures_total",
			Help:      "Total number of failed payment session requests.",
		}),
		createDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orders",
			Name:      "create_duration_seconds",
			Help:      "Order creation latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.ordersCreated,
		m.ordersPaid,
		m.statusChanges,
		m.paymentSessionFailures,
		m.createDuration,
	)

	return m
}

// Handler returns the prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *OrderMetrics) OrderCreated(duration time.Duration) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.createDuration.Observe(duration.Seconds())
}

func (m *OrderMetrics) OrderPaid() {
	if m == nil {
		return
	}
	m.ordersPaid.Inc()
}

func (m *OrderMetrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *OrderMetrics) PaymentSessionFailed() {
	if m == nil {
		return
	}
	m.paymentSessionFailures.Inc()
}
