package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records settlement activity segmented by strategy and
// payment type.
type PaymentMetrics struct {
	payments *prometheus.CounterVec
	errors   *prometheus.CounterVec
	value    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	paymentMetricsOnce sync.Once
	paymentRegistry    *PaymentMetrics
)

// Payments returns the lazily-initialised payment metrics registry.
func Payments() *PaymentMetrics {
	paymentMetricsOnce.Do(func() {
		paymentRegistry = &PaymentMetrics{
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "splitstream",
				Subsystem: "router",
				Name:      "payments_total",
				Help:      "Total payments processed segmented by strategy, type and outcome.",
			}, []string{"strategy", "type", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "splitstream",
				Subsystem: "router",
				Name:      "errors_total",
				Help:      "Total payment failures segmented by strategy and reason.",
			}, []string{"strategy", "reason"}),
			value: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "splitstream",
				Subsystem: "router",
				Name:      "settled_value_total",
				Help:      "Cumulative value routed to the settlement ledger per strategy.",
			}, []string{"strategy"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "splitstream",
				Subsystem: "router",
				Name:      "settle_duration_seconds",
				Help:      "Latency distribution for ledger settlement calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"strategy"}),
		}
		prometheus.MustRegister(
			paymentRegistry.payments,
			paymentRegistry.errors,
			paymentRegistry.value,
			paymentRegistry.latency,
		)
	})
	return paymentRegistry
}

// ObservePayment records one processed payment.
func (m *PaymentMetrics) ObservePayment(strategy, paymentType, outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(strategy, paymentType, outcome).Inc()
}

// ObserveError records one failed payment with its reason label.
func (m *PaymentMetrics) ObserveError(strategy, reason string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(strategy, reason).Inc()
}

// ObserveValue adds the settled amount to the per-strategy value counter.
// Precision loss from the float conversion is acceptable for metrics.
func (m *PaymentMetrics) ObserveValue(strategy string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	m.value.WithLabelValues(strategy).Add(f)
}

// ObserveSettleSeconds records the duration of one ledger settlement call.
func (m *PaymentMetrics) ObserveSettleSeconds(strategy string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(strategy).Observe(seconds)
}
