package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteComputationsTotal counts pricing passes by operation and outcome.
	QuoteComputationsTotal *prometheus.CounterVec
	// QuoteWarningsTotal counts data-integrity warnings attached to breakdowns.
	QuoteWarningsTotal *prometheus.CounterVec
	// QuoteComputeDuration records pricing pass latency in milliseconds.
	QuoteComputeDuration *prometheus.HistogramVec
	// QuoteSavesTotal counts persistence attempts by mode (immediate, debounced) and outcome.
	QuoteSavesTotal *prometheus.CounterVec
	// QuotePendingSaves reports debounced saves waiting for their timer.
	QuotePendingSaves prometheus.Gauge
	// DependencyBreakerState reports breaker state per dependency: 0=closed, 1=open, 2=half-open.
	DependencyBreakerState *prometheus.GaugeVec
	// DependencyBreakerTransitions counts breaker state changes.
	DependencyBreakerTransitions *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers quote Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteComputationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_computations_total",
			Help:      "Count of quote pricing passes by operation and result.",
		}, []string{"operation", "result"})
		QuoteWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_warnings_total",
			Help:      "Count of data-integrity warnings attached to quote breakdowns.",
		}, []string{"code"})
		QuoteComputeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_compute_duration_ms",
			Help:      "Latency of quote pricing passes in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"operation"})
		QuoteSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_saves_total",
			Help:      "Count of quote persistence attempts by mode and result.",
		}, []string{"mode", "result"})
		QuotePendingSaves = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quote_pending_saves",
			Help:      "Debounced quote saves waiting to run.",
		})
		DependencyBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dependency_breaker_state",
			Help:      "Circuit breaker state per dependency: 0=closed, 1=open, 2=half-open.",
		}, []string{"target"})
		DependencyBreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_breaker_transitions_total",
			Help:      "Count of circuit breaker state transitions.",
		}, []string{"target", "from", "to"})

		mustRegisterCollector(reg, QuoteComputationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteComputationsTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteWarningsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteWarningsTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteComputeDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				QuoteComputeDuration = v
			}
		})
		mustRegisterCollector(reg, QuoteSavesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteSavesTotal = v
			}
		})
		mustRegisterCollector(reg, QuotePendingSaves, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				QuotePendingSaves = v
			}
		})
		mustRegisterCollector(reg, DependencyBreakerState, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				DependencyBreakerState = v
			}
		})
		mustRegisterCollector(reg, DependencyBreakerTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DependencyBreakerTransitions = v
			}
		})
	})
}

// ObserveQuoteComputation records one pricing pass. It is a no-op before registration.
func ObserveQuoteComputation(operation, result string, elapsed time.Duration, warningCodes []string) {
	if QuoteComputationsTotal != nil {
		QuoteComputationsTotal.WithLabelValues(operation, result).Inc()
	}
	if QuoteComputeDuration != nil {
		QuoteComputeDuration.WithLabelValues(operation).Observe(DurationMillis(elapsed))
	}
	if QuoteWarningsTotal != nil {
		for _, code := range warningCodes {
			QuoteWarningsTotal.WithLabelValues(code).Inc()
		}
	}
}

// ObserveQuoteSave records one persistence attempt.
func ObserveQuoteSave(mode, result string) {
	if QuoteSavesTotal != nil {
		QuoteSavesTotal.WithLabelValues(mode, result).Inc()
	}
}

// SetPendingSaves publishes the number of debounced saves in flight.
func SetPendingSaves(n int) {
	if QuotePendingSaves != nil {
		QuotePendingSaves.Set(float64(n))
	}
}

// SetBreakerState publishes the state gauge for a dependency breaker.
func SetBreakerState(target string, value float64) {
	if DependencyBreakerState != nil {
		DependencyBreakerState.WithLabelValues(target).Set(value)
	}
}

// ObserveBreakerTransition counts one breaker state change.
func ObserveBreakerTransition(target, from, to string) {
	if DependencyBreakerTransitions != nil {
		DependencyBreakerTransitions.WithLabelValues(target, from, to).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
