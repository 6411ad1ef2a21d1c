package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the booking module.
type Metrics struct {
	// Bookings created, by currency
	BookingsCreated *prometheus.CounterVec

	// State transitions by target state
	Transitions *prometheus.CounterVec

	// Reprogramming decisions by outcome
	ReprogramDecisions *prometheus.CounterVec

	// Intake validation failures by stage
	IntakeFailures *prometheus.CounterVec

	// Policy evaluation latency
	PolicyLatency prometheus.Histogram
}

// New creates a Metrics instance with all booking module metrics registered.
func New() *Metrics {
	return &Metrics{
		BookingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rumbo_bookings_created_total",
			Help: "Total bookings created, by currency",
		}, []string{"currency"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rumbo_booking_transitions_total",
			Help: "Total booking state transitions by target state",
		}, []string{"to"}),

		ReprogramDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rumbo_reprogram_decisions_total",
			Help: "Total reprogramming authorization decisions by outcome",
		}, []string{"outcome"}), // outcome: "authorized", "denied"

		IntakeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rumbo_intake_failures_total",
			Help: "Total intake validation failures by stage",
		}, []string{"stage"}),

		PolicyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rumbo_reprogram_policy_duration_seconds",
			Help:    "Duration of reprogramming policy evaluation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

// IncrementCreated records a created booking.
func (m *Metrics) IncrementCreated(currency string) {
	if m != nil {
		m.BookingsCreated.WithLabelValues(currency).Inc()
	}
}

// IncrementTransition records a committed state transition.
func (m *Metrics) IncrementTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// IncrementReprogramDecision records a policy outcome.
func (m *Metrics) IncrementReprogramDecision(outcome string) {
	if m != nil {
		m.ReprogramDecisions.WithLabelValues(outcome).Inc()
	}
}

// IncrementIntakeFailure records a failed intake stage.
func (m *Metrics) IncrementIntakeFailure(stage string) {
	if m != nil {
		m.IntakeFailures.WithLabelValues(stage).Inc()
	}
}

// ObservePolicyLatency records policy evaluation duration.
func (m *Metrics) ObservePolicyLatency(d time.Duration) {
	if m != nil {
		m.PolicyLatency.Observe(d.Seconds())
	}
}
