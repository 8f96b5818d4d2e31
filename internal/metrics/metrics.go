package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soragold/giftshop/internal/cart/store"
	checkoutdomain "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/payment"
)

const namespace = "giftshop"

type ServerMetrics struct {
	Requests            *prometheus.CounterVec
	LatencyMS           *prometheus.HistogramVec
	CartMutations       *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	CheckoutTransitions *prometheus.CounterVec
	PaymentOutcomes     *prometheus.CounterVec
}

// NewServerMetrics registers the storefront collectors with reg, or with the
// default registry when reg is nil.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Cart changes by kind.",
	}, []string{"kind"})
	persistence := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "persistence_failures_total",
		Help:      "Cart loads and saves that failed and were kept in memory only.",
	}, []string{"op"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "transitions_total",
		Help:      "Checkout state transitions.",
	}, []string{"from", "to"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "payment_outcomes_total",
		Help:      "Resolved payment attempts by outcome.",
	}, []string{"status"})

	reg.MustRegister(requests, latency, mutations, persistence, transitions, payments)
	return &ServerMetrics{
		Requests:            requests,
		LatencyMS:           latency,
		CartMutations:       mutations,
		PersistenceFailures: persistence,
		CheckoutTransitions: transitions,
		PaymentOutcomes:     payments,
	}
}

// ObserveCart counts every change a cart store reports. Pass it to Store.Subscribe.
func (m *ServerMetrics) ObserveCart(e store.Event) {
	switch e.Kind {
	case store.EventItemAdded, store.EventItemRemoved, store.EventQuantityUpdated, store.EventCleared:
		m.CartMutations.WithLabelValues(string(e.Kind)).Inc()
	}
	var perr *store.PersistenceError
	if errors.As(e.Warning, &perr) {
		m.PersistenceFailures.WithLabelValues(perr.Op).Inc()
	}
}

func (m *ServerMetrics) ObserveTransition(from, to checkoutdomain.CheckoutStatus) {
	fromLabel := string(from)
	if fromLabel == "" {
		fromLabel = "NONE"
	}
	m.CheckoutTransitions.WithLabelValues(fromLabel, string(to)).Inc()
}

func (m *ServerMetrics) ObservePayment(status payment.Status) {
	m.PaymentOutcomes.WithLabelValues(string(status)).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the collectors of a specific registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
