package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking BFF.
type BookingMetrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	flowSteps       *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkey",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total FlowKey API calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowkey",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of FlowKey API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		flowSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkey",
			Subsystem: "flow",
			Name:      "step_transitions_total",
			Help:      "Booking flow step moves by direction and destination step",
		}, []string{"direction", "step"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkey",
			Subsystem: "flow",
			Name:      "submissions_total",
			Help:      "Booking flow submissions by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkey",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Staff booking request transitions by action and outcome",
		}, []string{"action", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.flowSteps, m.submissions, m.transitions)
	return m
}

func (m *BookingMetrics) ObserveUpstream(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(operation, outcome).Inc()
	m.upstreamLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveFlowStep(direction, step string) {
	if m == nil {
		return
	}
	m.flowSteps.WithLabelValues(direction, step).Inc()
}

func (m *BookingMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}
