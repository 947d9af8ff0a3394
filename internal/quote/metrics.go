package quote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotes_total",
		Help: "Quote pipeline runs by outcome",
	}, []string{"outcome"})

	quoteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_failures_total",
		Help: "Failed quotes by stage and reason",
	}, []string{"stage", "reason"})

	quoteStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quote_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"stage"})

	quoteSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quote_sessions_active",
		Help: "Sessions currently holding pipeline state",
	})
)
