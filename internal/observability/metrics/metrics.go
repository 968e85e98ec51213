package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	conflictsTotal     prometheus.Counter
	enrichmentFailures *prometheus.CounterVec
	slotQueryLatency   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutripractice",
			Subsystem: "appointments",
			Name:      "lifecycle_total",
			Help:      "Total appointment lifecycle transitions",
		}, []string{"action", "status"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutripractice",
			Subsystem: "appointments",
			Name:      "conflicts_total",
			Help:      "Total booking attempts rejected for overlapping reservations",
		}),
		enrichmentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutripractice",
			Subsystem: "appointments",
			Name:      "enrichment_failures_total",
			Help:      "Total best-effort enrichment step failures",
		}, []string{"step"}),
		slotQueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nutripractice",
			Subsystem: "appointments",
			Name:      "slot_query_seconds",
			Help:      "Latency of available-slot calculations",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.conflictsTotal, m.enrichmentFailures, m.slotQueryLatency)
	return m
}

func (m *BookingMetrics) ObserveLifecycle(action, status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(action, status).Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObserveEnrichmentFailure(step string) {
	if m == nil {
		return
	}
	m.enrichmentFailures.WithLabelValues(step).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(seconds float64) {
	if m == nil {
		return
	}
	m.slotQueryLatency.Observe(seconds)
}
