package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FunnelMetrics records the counters the funnel and dispatch paths emit.
type FunnelMetrics struct {
	cartWrites     *prometheus.CounterVec
	ownerMismatch  prometheus.Counter
	dispatchResult *prometheus.CounterVec
	dispatchDur    prometheus.Histogram
}

// NewFunnelMetrics registers the funnel metrics on the provided registerer.
func NewFunnelMetrics(reg prometheus.Registerer) *FunnelMetrics {
	if reg == nil {
		return &FunnelMetrics{}
	}
	cartWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_cart_writes_total",
		Help: "Cart snapshot writes by outcome.",
	}, []string{"outcome"})
	ownerMismatch := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "funnel_owner_mismatch_total",
		Help: "Order submissions whose resolved owner differs from the cart owner.",
	})
	dispatchResult := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conversion_dispatch_total",
		Help: "Conversion webhook dispatch attempts by result.",
	}, []string{"result"})
	dispatchDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversion_dispatch_duration_seconds",
		Help:    "Duration of outbound conversion webhook calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(cartWrites, ownerMismatch, dispatchResult, dispatchDur)
	return &FunnelMetrics{
		cartWrites:     cartWrites,
		ownerMismatch:  ownerMismatch,
		dispatchResult: dispatchResult,
		dispatchDur:    dispatchDur,
	}
}

// IncCartWrite increments the cart write counter for an outcome (created, merged).
func (m *FunnelMetrics) IncCartWrite(outcome string) {
	if m == nil || m.cartWrites == nil {
		return
	}
	m.cartWrites.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncOwnerMismatch counts an order whose cart already belongs to a different owner.
func (m *FunnelMetrics) IncOwnerMismatch() {
	if m == nil || m.ownerMismatch == nil {
		return
	}
	m.ownerMismatch.Inc()
}

// IncDispatch increments the dispatch counter for a result (sent, deduped, failed, skipped).
func (m *FunnelMetrics) IncDispatch(result string) {
	if m == nil || m.dispatchResult == nil {
		return
	}
	m.dispatchResult.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveDispatchDuration records how long the outbound webhook call took.
func (m *FunnelMetrics) ObserveDispatchDuration(duration time.Duration) {
	if m == nil || m.dispatchDur == nil {
		return
	}
	m.dispatchDur.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
