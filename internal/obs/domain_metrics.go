package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrderBodyTotal counts order-body build outcomes per checkout request.
	OrderBodyTotal *prometheus.CounterVec
	// PurchaseUnitTotal counts assembled purchase units (one per store per checkout).
	PurchaseUnitTotal prometheus.Counter
	// ActivationRunTotal counts store activation evaluations by outcome.
	ActivationRunTotal *prometheus.CounterVec
	// ProcessorRequestTotal counts outbound payment-processor API calls.
	ProcessorRequestTotal *prometheus.CounterVec
	// ProcessorRequestLatency records processor call latency in milliseconds.
	ProcessorRequestLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrderBodyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_body_total",
			Help:      "Count of payment-processor order body builds by result.",
		}, []string{"result"})
		PurchaseUnitTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_units_total",
			Help:      "Number of purchase units assembled across all checkouts.",
		})
		ActivationRunTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activation_runs_total",
			Help:      "Count of store activation evaluations by result.",
		}, []string{"result"})
		ProcessorRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_requests_total",
			Help:      "Count of outbound payment-processor requests by operation and result.",
		}, []string{"operation", "result"})
		ProcessorRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processor_request_duration_ms",
			Help:      "Latency of payment-processor requests in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation"})

		mustRegisterCollector(reg, OrderBodyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderBodyTotal = v
			}
		})
		mustRegisterCollector(reg, PurchaseUnitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PurchaseUnitTotal = v
			}
		})
		mustRegisterCollector(reg, ActivationRunTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ActivationRunTotal = v
			}
		})
		mustRegisterCollector(reg, ProcessorRequestTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProcessorRequestTotal = v
			}
		})
		mustRegisterCollector(reg, ProcessorRequestLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ProcessorRequestLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Errorf("register collector: %w", err))
		}
		replace(are.ExistingCollector)
	}
}
