package render

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webreader_render_total",
		Help: "Total render operations by engine and outcome",
	}, []string{"engine", "outcome"})

	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webreader_render_duration_seconds",
		Help:    "Render duration in seconds by engine",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"engine"})

	settleSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webreader_render_settle_samples_total",
		Help: "Total DOM snapshots taken while waiting for pages to settle",
	})

	renderQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webreader_render_queue_depth",
		Help: "Render operations waiting for the browser",
	})
)

// observe records the outcome and duration of one render.
func observe(engine string, start time.Time, err error) {
	renderTotal.WithLabelValues(engine, outcome(err)).Inc()
	renderDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
}
