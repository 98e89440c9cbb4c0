package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors, labelled by target so each upstream (currently only
// "paypal") gets its own series.
var (
	// BreakerState reports the current state as a numeric gauge,
	// 0=closed, 1=open, 2=half_open.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "State of the upstream circuit breaker (0=closed, 1=open, 2=half_open).",
		},
		[]string{"target"},
	)
	// BreakerTransitions counts every state change, labelled with the
	// edge so a flapping breaker shows up as open/half_open churn.
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Breaker state changes by from/to edge.",
		},
		[]string{"target", "from", "to"},
	)
	// BreakerOpenedTotal counts trips into the open state; it is the
	// number to alert on when the payment processor degrades.
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_opened_total",
			Help: "Times the breaker tripped open.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
