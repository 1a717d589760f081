// Package networktest provides graph fixtures for tests.
package networktest

import (
	"fmt"
	"math/rand"

	"github.com/dd0wney/sewertrace/pkg/network"
)

// NodeName returns the id of the i-th generated node
func NodeName(i int) network.NodeID {
	return network.NodeID(fmt.Sprintf("N%02d", i))
}

// Random builds a deterministic random network from seed: nodes structures,
// edges segments spread over both collections, roughly one far end in ten
// unknown, optional codes and cycles allowed.
func Random(seed int64, nodes, edges int) *network.MemorySource {
	rng := rand.New(rand.NewSource(seed))
	src := network.NewMemorySource()
	src.EnableCollection(network.Channel)

	codes := []network.Code{"", network.FlowStormwater, network.FlowWastewater, network.FlowCombined}
	next := map[network.Collection]network.EdgeID{network.Conduit: 1, network.Channel: 1}

	for i := 0; i < edges; i++ {
		c := network.Conduit
		if rng.Intn(4) == 0 {
			c = network.Channel
		}
		start := network.Known(NodeName(rng.Intn(nodes)))
		end := network.Known(NodeName(rng.Intn(nodes)))
		switch rng.Intn(10) {
		case 0:
			start = network.Unknown
		case 1:
			end = network.Unknown
		}
		e := network.Edge{
			Collection: c,
			ID:         next[c],
			Start:      start,
			End:        end,
			Category:   codes[rng.Intn(2)],
			Function:   codes[rng.Intn(2)],
			FlowType:   codes[rng.Intn(len(codes))],
			Length:     float64(1 + rng.Intn(50)),
			Diameter:   100 * (1 + rng.Intn(6)),
		}
		next[c]++
		if err := src.AddEdge(e); err != nil {
			panic(err)
		}
	}

	for i := 0; i < nodes/2; i++ {
		l := network.Liaison{
			ID:     network.LiaisonID(i + 1),
			Node:   NodeName(rng.Intn(nodes)),
			Entity: network.EntityID(fmt.Sprintf("IND%d", rng.Intn(nodes/3+1))),
		}
		if err := src.AddLiaison(l); err != nil {
			panic(err)
		}
		src.AddEntity(network.Entity{ID: l.Entity})
	}
	return src
}

// Edge is a shorthand for a conduit with unit length
func Edge(id network.EdgeID, start, end string) network.Edge {
	return network.Edge{
		Collection: network.Conduit,
		ID:         id,
		Start:      network.ParseEndpoint(start),
		End:        network.ParseEndpoint(end),
		Length:     1,
	}
}

// Channel is a shorthand for a channel with unit length
func Channel(id network.EdgeID, start, end string) network.Edge {
	e := Edge(id, start, end)
	e.Collection = network.Channel
	return e
}

// Build creates a source from edges and liaisons, panicking on duplicates
func Build(edges []network.Edge, liaisons ...network.Liaison) *network.MemorySource {
	src := network.NewMemorySource()
	src.EnableCollection(network.Channel)
	for _, e := range edges {
		if err := src.AddEdge(e); err != nil {
			panic(err)
		}
	}
	for _, l := range liaisons {
		if err := src.AddLiaison(l); err != nil {
			panic(err)
		}
	}
	return src
}

// Tree builds a deterministic random in-tree draining to N00: every other node
// has exactly one outgoing segment toward a lower-numbered node. Upstream
// regions of distinct branches never overlap.
func Tree(seed int64, nodes int) *network.MemorySource {
	rng := rand.New(rand.NewSource(seed))
	src := network.NewMemorySource()
	src.EnableCollection(network.Channel)

	for i := 1; i < nodes; i++ {
		c := network.Conduit
		if rng.Intn(3) == 0 {
			c = network.Channel
		}
		e := network.Edge{
			Collection: c,
			ID:         network.EdgeID(i),
			Start:      network.Known(NodeName(i)),
			End:        network.Known(NodeName(rng.Intn(i))),
			Length:     float64(1 + rng.Intn(20)),
		}
		if err := src.AddEdge(e); err != nil {
			panic(err)
		}
		if rng.Intn(4) == 0 {
			_ = src.AddLiaison(network.Liaison{
				ID:     network.LiaisonID(i),
				Node:   NodeName(i),
				Entity: network.EntityID(fmt.Sprintf("IND%d", i)),
			})
		}
	}
	return src
}
