package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "sewertrace"

// Registry holds all metrics for the application
type Registry struct {
	// Trace Metrics
	TracesTotal   *prometheus.CounterVec
	TraceDuration *prometheus.HistogramVec
	TraceEdges    *prometheus.HistogramVec

	// Visit Metrics
	VisitsTotal          *prometheus.CounterVec
	VisitRemovedEdges    prometheus.Histogram
	VisitRemovedEntities prometheus.Histogram
	SelectionOperations  *prometheus.CounterVec
	SelectionErrorsTotal *prometheus.CounterVec

	// Topology Metrics
	TopologyBuildsTotal   *prometheus.CounterVec
	TopologyBuildDuration *prometheus.HistogramVec
	TopologyCacheRequests *prometheus.CounterVec

	namespace string
	registry  *prometheus.Registry
	mu        sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry under DefaultNamespace
func NewRegistry() *Registry {
	return NewNamespacedRegistry(DefaultNamespace)
}

// NewNamespacedRegistry creates a new metrics registry with all metrics initialized
func NewNamespacedRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Registry{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	r.initTraceMetrics()
	r.initSelectionMetrics()
	r.initTopologyMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Namespace returns the metric name prefix
func (r *Registry) Namespace() string {
	return r.namespace
}
