package resilience

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const metricsNamespace = "quote"

// Upstream breakers are labelled by breaker name ("geocoding-opencage",
// "routing-graphhopper", "fare-predictor").
var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "upstream_breaker_state",
		Help:      "Upstream breaker state (0=closed, 0.5=half-open, 1=open)",
	}, []string{"upstream"})

	breakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "upstream_calls_total",
		Help:      "Upstream calls attempted through a breaker, by outcome",
	}, []string{"upstream", "outcome"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "upstream_breaker_transitions_total",
		Help:      "Upstream breaker state transitions",
	}, []string{"upstream", "from", "to"})

	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "retry_attempts_total",
		Help:      "Attempts made by retried operations",
	}, []string{"operation", "result"})

	retryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "retry_duration_seconds",
		Help:      "Wall time of retried operations including backoff",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation", "result"})

	retryAttemptsUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "retry_attempts_used",
		Help:      "Attempts used before success or giving up",
		Buckets:   []float64{1, 2, 3, 4, 5, 10},
	}, []string{"operation", "result"})

	retryBackoff = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "retry_backoff_seconds",
		Help:      "Backoff slept between attempts",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
	}, []string{"operation"})

	anonymousBreakers uint64
)

func nextBreakerName(base string) string {
	if base != "" {
		return base
	}
	return "upstream-" + strconv.FormatUint(atomic.AddUint64(&anonymousBreakers, 1), 10)
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

func recordBreakerState(name string, state gobreaker.State) {
	breakerState.WithLabelValues(name).Set(breakerStateValue(state))
}

func recordBreakerStateChange(name string, from, to gobreaker.State) {
	breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	recordBreakerState(name, to)
}

func recordBreakerRequest(name string) {
	breakerCalls.WithLabelValues(name, "attempted").Inc()
}

func recordBreakerFailure(name string) {
	breakerCalls.WithLabelValues(name, "failed").Inc()
}

// recordBreakerFallback counts calls rejected without reaching the upstream
func recordBreakerFallback(name string) {
	breakerCalls.WithLabelValues(name, "rejected").Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordRetryAttempt counts one attempt of operation
func RecordRetryAttempt(operation string, success bool) {
	retryAttempts.WithLabelValues(operation, resultLabel(success)).Inc()
}

// RecordRetryOperation records how long operation took overall and how many attempts it used
func RecordRetryOperation(operation string, durationSeconds float64, attempts int, success bool) {
	result := resultLabel(success)
	retryDuration.WithLabelValues(operation, result).Observe(durationSeconds)
	retryAttemptsUsed.WithLabelValues(operation, result).Observe(float64(attempts))
}

// RecordRetryBackoff records one backoff sleep
func RecordRetryBackoff(operation string, durationSeconds float64) {
	retryBackoff.WithLabelValues(operation).Observe(durationSeconds)
}
