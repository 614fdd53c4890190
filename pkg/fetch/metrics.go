package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webreader_fetch_requests_total",
		Help: "Total fetches by mode (http, render) and outcome",
	}, []string{"mode", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webreader_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by mode, cache hits included",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"mode"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webreader_fetch_errors_total",
		Help: "Total failed or non-2xx fetches by class",
	}, []string{"class"})
)
