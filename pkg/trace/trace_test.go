package trace

import (
	"errors"
	"testing"

	"github.com/dd0wney/sewertrace/pkg/network"
	nt "github.com/dd0wney/sewertrace/pkg/network/networktest"
	"github.com/dd0wney/sewertrace/pkg/topology"
)

func newTracer(src *network.MemorySource) *Tracer {
	return NewTracer(topology.NewIndex(src, src))
}

func conduits(ids ...network.EdgeID) network.Set[network.EdgeID] {
	return network.NewSet(ids...)
}

// TestTrace_UpstreamChain tests a simple upstream walk
func TestTrace_UpstreamChain(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(1, "A", "B"),
		nt.Edge(2, "B", "C"),
		nt.Edge(3, "C", "D"),
	})
	tr := newTracer(src)

	res, err := tr.Trace("C", Upstream, Filters{})
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}

	if !res.Edges[network.Conduit].Equal(conduits(1, 2)) {
		t.Errorf("Edges = %v, want [1 2]", res.Edges.Refs())
	}
	if res.TotalLength != 2 {
		t.Errorf("TotalLength = %v, want 2", res.TotalLength)
	}
	if !res.Nodes.Equal(network.NewSet[network.NodeID]("A", "B", "C")) {
		t.Errorf("Nodes = %v", network.Sorted(res.Nodes))
	}
}

// TestTrace_Downstream tests a downstream walk across collections
func TestTrace_Downstream(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(1, "A", "B"),
		nt.Channel(1, "B", "C"),
		nt.Edge(2, "C", "D"),
		nt.Edge(3, "X", "B"),
	})
	tr := newTracer(src)

	res, err := tr.Trace("B", Downstream, Filters{})
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}

	if !res.Edges[network.Conduit].Equal(conduits(2)) {
		t.Errorf("Conduits = %v, want [2]", network.Sorted(res.Edges[network.Conduit]))
	}
	if !res.Edges[network.Channel].Equal(conduits(1)) {
		t.Errorf("Channels = %v, want [1]", network.Sorted(res.Edges[network.Channel]))
	}
	if res.Count() != 2 {
		t.Errorf("Count = %d, want 2", res.Count())
	}
}

// TestTrace_SameIDAcrossCollections tests collection-scoped ids
func TestTrace_SameIDAcrossCollections(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(7, "A", "B"),
		nt.Channel(7, "C", "B"),
	})
	res, err := newTracer(src).Trace("B", Upstream, Filters{})
	if err != nil {
		t.Fatal(err)
	}

	if !res.Edges.Has(network.EdgeRef{Collection: network.Conduit, ID: 7}) ||
		!res.Edges.Has(network.EdgeRef{Collection: network.Channel, ID: 7}) {
		t.Errorf("Expected both conduit:7 and channel:7, got %v", res.Edges.Refs())
	}
	if res.TotalLength != 2 {
		t.Errorf("TotalLength = %v, want 2", res.TotalLength)
	}
}

// TestTrace_Filters tests that absent attributes never block
func TestTrace_Filters(t *testing.T) {
	e1 := nt.Edge(1, "A", "B")
	e1.Category = "01"
	e2 := nt.Edge(2, "X", "A")
	e2.Category = "02" // explicit mismatch
	e3 := nt.Edge(3, "Y", "A")
	e4 := nt.Edge(4, "Z", "Y")
	e4.Function = "COL"

	src := nt.Build([]network.Edge{e1, e2, e3, e4})
	tr := newTracer(src)

	res, err := tr.Trace("B", Upstream, Filters{Category: "01", Function: "DEV"})
	if err != nil {
		t.Fatal(err)
	}

	want := conduits(1, 3)
	if !res.Edges[network.Conduit].Equal(want) {
		t.Errorf("Edges = %v, want [1 3]", network.Sorted(res.Edges[network.Conduit]))
	}
	if res.Nodes.Has("X") {
		t.Error("Walk should not continue past a filtered edge")
	}
}

// TestTrace_InvalidFilter tests boundary validation
func TestTrace_InvalidFilter(t *testing.T) {
	tr := newTracer(nt.Build(nil))

	_, err := tr.Trace("A", Upstream, Filters{Category: "01;DROP"})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("Expected ErrInvalidFilter, got %v", err)
	}
}

// TestTrace_UnknownStart tests that missing starts yield empty results
func TestTrace_UnknownStart(t *testing.T) {
	tr := newTracer(nt.Build([]network.Edge{nt.Edge(1, "A", "B")}))

	for _, start := range []network.NodeID{"", "INCONNU", "NOPE"} {
		res, err := tr.Trace(start, Downstream, Filters{})
		if err != nil {
			t.Errorf("Trace(%q) error: %v", start, err)
			continue
		}
		if !res.IsEmpty() || res.TotalLength != 0 {
			t.Errorf("Trace(%q) = %v, want empty", start, res.Edges.Refs())
		}
	}
}

// TestTrace_SentinelLeaf tests that an unknown far end is a leaf
func TestTrace_SentinelLeaf(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(1, "INCONNU", "B"),
		nt.Edge(2, "A", "B"),
		nt.Edge(3, "Q", "A"),
	})
	res, err := newTracer(src).Trace("B", Upstream, Filters{})
	if err != nil {
		t.Fatal(err)
	}

	if !res.Edges[network.Conduit].Equal(conduits(1, 2, 3)) {
		t.Errorf("Edges = %v, want [1 2 3]", network.Sorted(res.Edges[network.Conduit]))
	}
	if res.Nodes.Has("INCONNU") || res.Nodes.Has("") {
		t.Error("Sentinel must never be visited")
	}
}

// TestTrace_Cycle tests termination on cyclic topology
func TestTrace_Cycle(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(1, "A", "B"),
		nt.Edge(2, "B", "C"),
		nt.Edge(3, "C", "A"),
		nt.Edge(4, "C", "D"),
	})
	res, err := newTracer(src).Trace("A", Downstream, Filters{})
	if err != nil {
		t.Fatal(err)
	}

	if res.Count() != 4 || res.TotalLength != 4 {
		t.Errorf("Count/TotalLength = %d/%v, want 4/4", res.Count(), res.TotalLength)
	}
	if len(res.Nodes) != 4 {
		t.Errorf("Nodes = %v, want 4", network.Sorted(res.Nodes))
	}
}

// TestTraceWithin tests selection-restricted walks
func TestTraceWithin(t *testing.T) {
	e5 := nt.Edge(5, "P", "A")
	e5.Category = "99"
	src := nt.Build([]network.Edge{
		nt.Edge(1, "A", "B"),
		nt.Edge(2, "B", "C"),
		nt.Edge(3, "C", "D"),
		e5,
	})
	tr := newTracer(src)

	allowed := network.EdgeSets{network.Conduit: conduits(1, 3, 5)}
	res, err := tr.TraceWithin("A", Downstream, allowed)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Edges[network.Conduit].Equal(conduits(1)) {
		t.Errorf("Downstream within = %v, want [1]", network.Sorted(res.Edges[network.Conduit]))
	}

	res, _ = tr.TraceWithin("B", Upstream, allowed)
	if !res.Edges[network.Conduit].Equal(conduits(1, 5)) {
		t.Errorf("Upstream within = %v, want [1 5]", network.Sorted(res.Edges[network.Conduit]))
	}

	res, _ = tr.TraceWithin("A", Downstream, network.NewEdgeSets())
	if !res.IsEmpty() {
		t.Error("Empty allowed set should yield no edges")
	}
}

// TestResult_FlowLabels tests flow type labelling
func TestResult_FlowLabels(t *testing.T) {
	e1 := nt.Edge(1, "A", "B")
	e1.FlowType = network.FlowWastewater
	e2 := nt.Edge(2, "X", "B")
	e2.FlowType = network.FlowStormwater
	e3 := nt.Edge(3, "Y", "B")
	e3.FlowType = "09"

	res, _ := newTracer(nt.Build([]network.Edge{e1, e2, e3})).Trace("B", Upstream, Filters{})
	labels := res.FlowLabels()
	want := []string{"stormwater", "wastewater", "09"}
	if len(labels) != len(want) {
		t.Fatalf("FlowLabels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("FlowLabels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}

	empty, _ := newTracer(nt.Build([]network.Edge{nt.Edge(1, "A", "B")})).Trace("B", Upstream, Filters{})
	if got := empty.FlowLabels(); len(got) != 1 || got[0] != "none" {
		t.Errorf("FlowLabels without codes = %v", got)
	}
}

// TestResult_Endpoints tests endpoint collection
func TestResult_Endpoints(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(1, "A", "B"),
		nt.Edge(2, "B", "UNKNOWN"),
	})
	res, _ := newTracer(src).Trace("A", Downstream, Filters{})

	if !res.Endpoints().Equal(network.NewSet[network.NodeID]("A", "B")) {
		t.Errorf("Endpoints = %v, want [A B]", network.Sorted(res.Endpoints()))
	}

	isolated, _ := newTracer(src).Trace("Z", Downstream, Filters{})
	if !isolated.Endpoints().Equal(network.NewSet[network.NodeID]("Z")) {
		t.Errorf("Endpoints of isolated start = %v", network.Sorted(isolated.Endpoints()))
	}
}

// TestResult_Merge tests union without double counting
func TestResult_Merge(t *testing.T) {
	src := nt.Build([]network.Edge{
		nt.Edge(1, "A", "C"),
		nt.Edge(2, "B", "C"),
		nt.Edge(3, "C", "D"),
	})
	ix := topology.NewIndex(src, src)
	tr := NewTracer(ix)

	a, _ := tr.Trace("A", Downstream, Filters{})
	b, _ := tr.Trace("B", Downstream, Filters{})
	lookup := func(ref network.EdgeRef) *network.Edge {
		e, _ := ix.Edge(ref)
		return e
	}
	a.Merge(b, lookup)

	if a.Count() != 3 {
		t.Errorf("Merged count = %d, want 3", a.Count())
	}
	if a.TotalLength != 3 {
		t.Errorf("Merged TotalLength = %v, want 3", a.TotalLength)
	}

	isolated, _ := tr.Trace("Z", Downstream, Filters{})
	u := Union(lookup, b, isolated)
	if u.Count() != 2 || u.TotalLength != 2 {
		t.Errorf("Union count=%d length=%v, want 2 and 2", u.Count(), u.TotalLength)
	}
	want := network.NewSet[network.NodeID]("B", "C", "D", "Z")
	if !u.Endpoints().Equal(want) {
		t.Errorf("Union endpoints = %v, want %v", network.Sorted(u.Endpoints()), network.Sorted(want))
	}
}

// TestParseDirection tests direction parsing
func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"upstream", Upstream},
		{"Amont", Upstream},
		{"down", Downstream},
		{" aval ", Downstream},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseDirection(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseDirection("left"); err == nil {
		t.Error("Expected error for unknown direction")
	}
}
