package trace

import (
	"github.com/dd0wney/sewertrace/pkg/network"
)

// Result is the outcome of a walk
type Result struct {
	Start       network.NodeID
	Edges       network.EdgeSets
	Nodes       network.Set[network.NodeID] // nodes expanded by the walk
	TotalLength float64
	FlowTypes   network.Set[network.Code]

	endpoints network.Set[network.NodeID]
}

func newResult(start network.NodeID) *Result {
	return &Result{
		Start:     start,
		Edges:     network.NewEdgeSets(),
		Nodes:     make(network.Set[network.NodeID]),
		FlowTypes: make(network.Set[network.Code]),
		endpoints: make(network.Set[network.NodeID]),
	}
}

// record adds an edge once; repeated edges are ignored
func (r *Result) record(e *network.Edge) {
	ref := e.Ref()
	if r.Edges.Has(ref) {
		return
	}
	r.Edges.Add(ref)
	r.TotalLength += e.Length
	if e.FlowType.IsSet() {
		r.FlowTypes.Add(e.FlowType)
	}
	if id, ok := e.Start.Get(); ok {
		r.endpoints.Add(id)
	}
	if id, ok := e.End.Get(); ok {
		r.endpoints.Add(id)
	}
}

// Count returns the number of edges across collections
func (r *Result) Count() int {
	return r.Edges.Len()
}

// IsEmpty reports whether no edge was reached
func (r *Result) IsEmpty() bool {
	return r.Count() == 0
}

// Endpoints returns every known endpoint of the result's edges plus the start node
func (r *Result) Endpoints() network.Set[network.NodeID] {
	out := r.endpoints.Clone()
	if network.ParseEndpoint(string(r.Start)).IsKnown() {
		out.Add(r.Start)
	}
	return out
}

// Merge folds other into r, start node included. Lengths of edges already
// present are not summed twice.
func (r *Result) Merge(other *Result, lookup func(network.EdgeRef) *network.Edge) {
	for _, ref := range other.Edges.Refs() {
		if r.Edges.Has(ref) {
			continue
		}
		if e := lookup(ref); e != nil {
			r.record(e)
		} else {
			r.Edges.Add(ref)
		}
	}
	r.Nodes.Merge(other.Nodes)
	r.endpoints.Merge(other.Endpoints())
	r.FlowTypes.Merge(other.FlowTypes)
}

// Union merges results into a new result without a start node
func Union(lookup func(network.EdgeRef) *network.Edge, results ...*Result) *Result {
	out := newResult("")
	for _, r := range results {
		out.Merge(r, lookup)
	}
	return out
}

var flowLabels = map[network.Code]string{
	network.FlowStormwater: "stormwater",
	network.FlowWastewater: "wastewater",
	network.FlowCombined:   "combined",
}

// FlowLabel returns the human label of a flow type code
func FlowLabel(c network.Code) string {
	if l, ok := flowLabels[c]; ok {
		return l
	}
	return string(c)
}

// FlowLabels returns the labels of the observed flow types, sorted by code,
// or "none" when no flow type was seen
func (r *Result) FlowLabels() []string {
	if len(r.FlowTypes) == 0 {
		return []string{"none"}
	}
	codes := network.Sorted(r.FlowTypes)
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, FlowLabel(c))
	}
	return out
}
