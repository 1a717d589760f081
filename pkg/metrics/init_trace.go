package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTraceMetrics() {
	r.TracesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "traces_total",
			Help:      "Total number of network traces",
		},
		[]string{"direction", "mode"},
	)

	r.TraceDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      "trace_duration_seconds",
			Help:      "Trace duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"direction"},
	)

	r.TraceEdges = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      "trace_edges",
			Help:      "Number of edges reached per trace",
			Buckets:   []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"direction"},
	)
}
