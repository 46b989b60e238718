package stats

import "github.com/prometheus/client_golang/prometheus"

var (
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stage calls in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"},
	)

	stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total failed pipeline stage calls",
		},
		[]string{"stage"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Packs waiting for an inference worker",
		},
	)

	droppedPacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Packs discarded at shutdown without inference",
		},
	)
)

func init() {
	prometheus.MustRegister(stageDuration, stageFailures, queueDepth, droppedPacks)
}
