// Package diagnostics flags suspicious conduits in the current selection:
// stormwater/wastewater inversions and diameter reductions.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/topology"
)

// Diameter reduction thresholds in millimetres
const (
	WastewaterThreshold = 50
	DefaultThreshold    = 200
)

// Position of the structure relative to the conduit
type Position string

const (
	PositionUpstream   Position = "upstream"
	PositionDownstream Position = "downstream"
)

// Direction of a misconnection
type Direction string

const (
	WastewaterIntoStormwater Direction = "wastewater->stormwater"
	StormwaterIntoWastewater Direction = "stormwater->wastewater"
)

// Inversion status labels keyed by the conduit's inversion code
var inversionStatus = map[network.Code]string{
	"1": "stormwater into wastewater confirmed",
	"2": "wastewater into stormwater confirmed",
	"3": "stormwater overflow into wastewater",
	"4": "wastewater overflow into stormwater",
}

// StatusToCheck is reported when no inversion code is known
const StatusToCheck = "to check"

// Inversion is a conduit whose flow type differs from a connected structure
type Inversion struct {
	Conduit   network.EdgeID
	Node      network.NodeID
	Position  Position
	Direction Direction
	Status    string
}

func (i Inversion) String() string {
	return fmt.Sprintf("inversion %s (%s of structure %s) - %s", i.Direction, i.Position, i.Node, i.Status)
}

// Reduction is a conduit narrower than its widest feeder
type Reduction struct {
	Conduit     network.EdgeID
	Node        network.NodeID
	MaxIncoming int
	Diameter    int
	Threshold   int
}

func (r Reduction) String() string {
	return fmt.Sprintf("diameter reduction %d -> %d (threshold %d mm) at structure %s", r.MaxIncoming, r.Diameter, r.Threshold, r.Node)
}

// Report groups the findings of one run
type Report struct {
	Inversions []Inversion
	Reductions []Reduction
}

// Empty reports whether nothing was found
func (r *Report) Empty() bool {
	return len(r.Inversions) == 0 && len(r.Reductions) == 0
}

// Checker runs diagnostics over the conduit collection
type Checker struct {
	index *topology.Index
	nodes network.NodeSource
}

// NewChecker creates a checker. nodes may be nil, in which case no
// inversion can be detected.
func NewChecker(index *topology.Index, nodes network.NodeSource) *Checker {
	return &Checker{index: index, nodes: nodes}
}

// Run inspects the given conduits. Unknown ids are skipped.
func (c *Checker) Run(conduits network.Set[network.EdgeID]) (*Report, error) {
	report := &Report{}
	if len(conduits) == 0 {
		return report, nil
	}

	incoming, err := c.index.Incoming()
	if err != nil {
		return nil, err
	}
	outgoing, err := c.index.Outgoing()
	if err != nil {
		return nil, err
	}

	for _, id := range network.Sorted(conduits) {
		e, err := c.index.Edge(network.EdgeRef{Collection: network.Conduit, ID: id})
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		report.Inversions = append(report.Inversions, c.inversions(e)...)
		if r, ok := reduction(e, incoming, outgoing); ok {
			report.Reductions = append(report.Reductions, r)
		}
	}

	sort.SliceStable(report.Inversions, func(i, j int) bool {
		return report.Inversions[i].Conduit < report.Inversions[j].Conduit
	})
	return report, nil
}

func isSeparate(c network.Code) bool {
	return c == network.FlowStormwater || c == network.FlowWastewater
}

func (c *Checker) inversions(e *network.Edge) []Inversion {
	if c.nodes == nil || !isSeparate(e.FlowType) {
		return nil
	}

	var out []Inversion
	ends := []struct {
		end network.Endpoint
		pos Position
	}{
		{e.Start, PositionUpstream},
		{e.End, PositionDownstream},
	}
	for _, x := range ends {
		id, ok := x.end.Get()
		if !ok {
			continue
		}
		info, ok := c.nodes.Node(id)
		if !ok || !isSeparate(info.NetworkType) || info.NetworkType == e.FlowType {
			continue
		}

		dir := StormwaterIntoWastewater
		if e.FlowType == network.FlowWastewater {
			dir = WastewaterIntoStormwater
		}
		status, ok := inversionStatus[e.Inversion]
		if !ok {
			status = StatusToCheck
		}
		out = append(out, Inversion{
			Conduit:   e.ID,
			Node:      id,
			Position:  x.pos,
			Direction: dir,
			Status:    status,
		})
	}
	return out
}

// reduction checks the start structure of e: it must be fed by at least one
// conduit and drain through e alone
func reduction(e *network.Edge, incoming, outgoing map[network.NodeID][]topology.Adjacent) (Reduction, bool) {
	if e.Diameter <= 0 {
		return Reduction{}, false
	}
	start, ok := e.Start.Get()
	if !ok {
		return Reduction{}, false
	}

	feeders, maxIn := 0, 0
	for _, adj := range incoming[start] {
		if adj.Ref.Collection != network.Conduit {
			continue
		}
		feeders++
		if adj.Edge.Diameter > maxIn {
			maxIn = adj.Edge.Diameter
		}
	}
	drains := 0
	for _, adj := range outgoing[start] {
		if adj.Ref.Collection == network.Conduit {
			drains++
		}
	}
	if feeders == 0 || drains != 1 || maxIn == 0 {
		return Reduction{}, false
	}

	threshold := DefaultThreshold
	if e.FlowType == network.FlowWastewater {
		threshold = WastewaterThreshold
	}
	if maxIn-e.Diameter <= threshold {
		return Reduction{}, false
	}
	return Reduction{
		Conduit:     e.ID,
		Node:        start,
		MaxIncoming: maxIn,
		Diameter:    e.Diameter,
		Threshold:   threshold,
	}, true
}
