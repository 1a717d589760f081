package metrics

import (
	"strconv"
	"time"
)

// Trace modes
const (
	ModeFull   = "full"
	ModeWithin = "within"
)

// RecordTrace records a completed trace with its duration and reach
func (r *Registry) RecordTrace(direction, mode string, duration time.Duration, edges int) {
	r.TracesTotal.WithLabelValues(direction, mode).Inc()
	r.TraceDuration.WithLabelValues(direction).Observe(duration.Seconds())
	r.TraceEdges.WithLabelValues(direction).Observe(float64(edges))
}

// RecordVisit records an applied visit and how much it narrowed the selection
func (r *Registry) RecordVisit(pollution bool, removedEdges, removedEntities int) {
	r.VisitsTotal.WithLabelValues(strconv.FormatBool(pollution)).Inc()
	r.VisitRemovedEdges.Observe(float64(removedEdges))
	r.VisitRemovedEntities.Observe(float64(removedEntities))
}

// RecordSelectionOperation counts a write to one selection layer
func (r *Registry) RecordSelectionOperation(layer, op string) {
	r.SelectionOperations.WithLabelValues(layer, op).Inc()
}

// RecordError counts a failed session operation
func (r *Registry) RecordError(op string) {
	r.SelectionErrorsTotal.WithLabelValues(op).Inc()
}

// RecordTopologyBuild records an adjacency map rebuild
func (r *Registry) RecordTopologyBuild(mapName string, d time.Duration) {
	r.TopologyBuildsTotal.WithLabelValues(mapName).Inc()
	r.TopologyBuildDuration.WithLabelValues(mapName).Observe(d.Seconds())
}

// RecordTopologyLookup records a cache hit or miss
func (r *Registry) RecordTopologyLookup(hit bool) {
	if hit {
		r.TopologyCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	r.TopologyCacheRequests.WithLabelValues("miss").Inc()
}
