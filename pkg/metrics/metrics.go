package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CheckoutMetrics struct {
	Checkouts      *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	Webhooks       *prometheus.CounterVec
	GatewayLatency *prometheus.HistogramVec
}

func NewCheckoutMetrics() *CheckoutMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: "checkout",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"gateway", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: "checkout",
		Name:      "order_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"gateway", "status"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: "checkout",
		Name:      "webhooks_total",
		Help:      "Webhook deliveries by result.",
	}, []string{"gateway", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecom",
		Subsystem: "checkout",
		Name:      "gateway_call_duration_ms",
		Help:      "Payment gateway call latency in milliseconds.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
	}, []string{"gateway", "op"})

	prometheus.MustRegister(checkouts, transitions, webhooks, latency)
	return &CheckoutMetrics{
		Checkouts:      checkouts,
		Transitions:    transitions,
		Webhooks:       webhooks,
		GatewayLatency: latency,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
