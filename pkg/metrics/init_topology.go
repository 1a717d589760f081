package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTopologyMetrics() {
	r.TopologyBuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "topology_builds_total",
			Help:      "Total number of adjacency map rebuilds",
		},
		[]string{"map"},
	)

	r.TopologyBuildDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      "topology_build_duration_seconds",
			Help:      "Adjacency map build duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"map"},
	)

	r.TopologyCacheRequests = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "topology_cache_requests_total",
			Help:      "Adjacency map lookups by cache result",
		},
		[]string{"result"},
	)
}
