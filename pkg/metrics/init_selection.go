package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSelectionMetrics() {
	r.VisitsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "visits_total",
			Help:      "Total number of field visits applied",
		},
		[]string{"pollution"},
	)

	r.VisitRemovedEdges = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      "visit_removed_edges",
			Help:      "Number of edges removed from the selection per visit",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500},
		},
	)

	r.VisitRemovedEntities = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      "visit_removed_entities",
			Help:      "Number of industrial entities cleared per visit",
			Buckets:   []float64{0, 1, 2, 5, 10, 50},
		},
	)

	r.SelectionOperations = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "selection_operations_total",
			Help:      "Total number of selection layer operations",
		},
		[]string{"layer", "op"},
	)

	r.SelectionErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "selection_errors_total",
			Help:      "Total number of failed session operations",
		},
		[]string{"op"},
	)
}
