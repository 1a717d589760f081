// Package selection narrows the operator's selection after each field visit.
package selection

import (
	"context"
	"fmt"

	"github.com/dd0wney/sewertrace/pkg/liaison"
	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/topology"
	"github.com/dd0wney/sewertrace/pkg/trace"
)

// Outcome reports what a visit removed from the selection
type Outcome struct {
	Node            network.NodeID
	Pollution       bool
	Branches        []network.Branch
	Kept            network.Set[network.BranchID]
	RemovedEdges    network.EdgeSets
	RemovedLiaisons network.Set[network.LiaisonID]
	RemovedEntities network.Set[network.EntityID]
}

func newOutcome(v network.NodeID, pollution bool) *Outcome {
	return &Outcome{
		Node:            v,
		Pollution:       pollution,
		Kept:            make(network.Set[network.BranchID]),
		RemovedEdges:    network.NewEdgeSets(),
		RemovedLiaisons: make(network.Set[network.LiaisonID]),
		RemovedEntities: make(network.Set[network.EntityID]),
	}
}

// Engine applies visit decisions to the selection
type Engine struct {
	index    *topology.Index
	tracer   *trace.Tracer
	resolver *liaison.Resolver
	selected network.Selections
	logger   logging.Logger
}

// NewEngine creates an engine. The selections are re-read before every use.
func NewEngine(index *topology.Index, tracer *trace.Tracer, resolver *liaison.Resolver, sel network.Selections, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		index:    index,
		tracer:   tracer,
		resolver: resolver,
		selected: sel,
		logger:   logger.With(logging.Component("selection")),
	}
}

// Branches returns the incoming edges of both collections at v followed by
// the liaisons attached to v
func (e *Engine) Branches(v network.NodeID) ([]network.Branch, error) {
	incoming, err := e.index.Incoming()
	if err != nil {
		return nil, err
	}
	byNode, err := e.index.Liaisons()
	if err != nil {
		return nil, err
	}

	branches := make([]network.Branch, 0, len(incoming[v])+len(byNode[v]))
	for _, adj := range incoming[v] {
		branches = append(branches, network.Branch{
			Kind:     network.BranchKindOf(adj.Ref.Collection),
			ID:       int64(adj.Ref.ID),
			Upstream: adj.Edge.Start,
		})
	}
	for _, l := range byNode[v] {
		branches = append(branches, network.Branch{
			Kind:   network.BranchLiaison,
			ID:     int64(l.ID),
			Entity: l.Entity,
		})
	}
	return branches, nil
}

// decide returns the kept branch ids. Without pollution nothing is kept; a
// single branch is kept automatically; unknown keep ids are ignored.
func decide(branches []network.Branch, pollution bool, keep network.Set[network.BranchID]) network.Set[network.BranchID] {
	kept := make(network.Set[network.BranchID])
	if !pollution || len(branches) == 0 {
		return kept
	}
	if len(branches) == 1 {
		kept.Add(branches[0].BranchID())
		return kept
	}
	for _, b := range branches {
		if keep.Has(b.BranchID()) {
			kept.Add(b.BranchID())
		}
	}
	return kept
}

// Visit records the operator's decision at v: every branch not kept is
// discarded with its full upstream history, and when pollution is confirmed
// the selection is narrowed to the kept branches' upstream.
func (e *Engine) Visit(ctx context.Context, v network.NodeID, pollution bool, keep network.Set[network.BranchID]) (*Outcome, error) {
	out := newOutcome(v, pollution)

	branches, err := e.Branches(v)
	if err != nil {
		return nil, fmt.Errorf("visit %s: %w", v, err)
	}
	out.Branches = branches
	out.Kept = decide(branches, pollution, keep)

	for _, b := range branches {
		if out.Kept.Has(b.BranchID()) {
			continue
		}
		if err := e.discard(ctx, v, b, out); err != nil {
			return nil, fmt.Errorf("visit %s: discard %s: %w", v, b.BranchID(), err)
		}
	}

	if pollution {
		if err := e.purgeDownstream(ctx, v, out); err != nil {
			return nil, fmt.Errorf("visit %s: %w", v, err)
		}
		if err := e.narrow(ctx, v, branches, out); err != nil {
			return nil, fmt.Errorf("visit %s: %w", v, err)
		}
	}

	e.logger.Info("visit applied",
		logging.Node(string(v)),
		logging.Bool("pollution", pollution),
		logging.Int("branches", len(branches)),
		logging.Int("kept", len(out.Kept)),
		logging.Edges(out.RemovedEdges.Len()),
		logging.Int("removed_entities", len(out.RemovedEntities)))

	return out, nil
}

// discard removes a branch. An edge branch takes its entire unrestricted
// upstream with it, together with the liaisons along that walk.
func (e *Engine) discard(ctx context.Context, v network.NodeID, b network.Branch, out *Outcome) error {
	if b.Kind == network.BranchLiaison {
		return e.deselectLiaisons(ctx, network.NewSet(network.LiaisonID(b.ID)), out)
	}

	ref, _ := b.EdgeRef()
	edges := network.NewEdgeSets()
	edges.Add(ref)
	walked := make(network.Set[network.NodeID])

	if up, ok := b.Upstream.Get(); ok {
		res, err := e.tracer.Trace(up, trace.Upstream, trace.Filters{})
		if err != nil {
			return err
		}
		edges.Merge(res.Edges)
		walked = res.Nodes
	}

	if err := e.deselectEdges(ctx, edges, out); err != nil {
		return err
	}
	// a cycle may lead the walk back to v, whose liaisons are branches of their own
	walked.Remove(v)
	return e.deselectNodeLiaisons(ctx, walked, out)
}

// purgeDownstream deselects the selected path from v toward the trace origin
// and the liaisons met along it, v excluded
func (e *Engine) purgeDownstream(ctx context.Context, v network.NodeID, out *Outcome) error {
	current, err := e.selected.SelectedEdges(ctx)
	if err != nil {
		return err
	}
	down, err := e.tracer.TraceWithin(v, trace.Downstream, current)
	if err != nil {
		return err
	}
	if err := e.deselectEdges(ctx, down.Edges, out); err != nil {
		return err
	}
	nodes := down.Nodes.Clone()
	nodes.Remove(v)
	return e.deselectNodeLiaisons(ctx, nodes, out)
}

// narrow keeps only the kept branches and their selected upstream, purging
// the rest of the selection and the liaisons of purged endpoints
func (e *Engine) narrow(ctx context.Context, v network.NodeID, branches []network.Branch, out *Outcome) error {
	current, err := e.selected.SelectedEdges(ctx)
	if err != nil {
		return err
	}

	keepEdges := network.NewEdgeSets()
	keepNodes := network.NewSet(v)
	for _, b := range branches {
		ref, isEdge := b.EdgeRef()
		if !isEdge || !out.Kept.Has(b.BranchID()) {
			continue
		}
		keepEdges.Add(ref)
		up, ok := b.Upstream.Get()
		if !ok {
			continue
		}
		keepNodes.Add(up)
		res, err := e.tracer.TraceWithin(up, trace.Upstream, current)
		if err != nil {
			return err
		}
		keepEdges.Merge(res.Edges)
		keepNodes.Merge(res.Nodes)
	}

	purge := current.Difference(keepEdges)
	if purge.Len() == 0 {
		return nil
	}
	if err := e.deselectEdges(ctx, purge, out); err != nil {
		return err
	}

	orphaned := make(network.Set[network.NodeID])
	for _, ref := range purge.Refs() {
		edge, err := e.index.Edge(ref)
		if err != nil {
			return err
		}
		if edge == nil {
			continue
		}
		for _, end := range []network.Endpoint{edge.Start, edge.End} {
			if id, ok := end.Get(); ok && !keepNodes.Has(id) {
				orphaned.Add(id)
			}
		}
	}
	return e.deselectNodeLiaisons(ctx, orphaned, out)
}

func (e *Engine) deselectEdges(ctx context.Context, edges network.EdgeSets, out *Outcome) error {
	for _, c := range network.Collections {
		removed, err := deselectReported(ctx, e.selected.Edges(c), edges[c])
		if err != nil {
			return network.NewSourceError("deselect", c.String(), err)
		}
		out.RemovedEdges.Of(c).Merge(removed)
	}
	return nil
}

func (e *Engine) deselectNodeLiaisons(ctx context.Context, nodes network.Set[network.NodeID], out *Outcome) error {
	if len(nodes) == 0 {
		return nil
	}
	ids, err := e.resolver.LiaisonsForNodes(nodes)
	if err != nil {
		return err
	}
	return e.deselectLiaisons(ctx, ids, out)
}

// deselectLiaisons removes liaisons and every entity they point to
func (e *Engine) deselectLiaisons(ctx context.Context, ids network.Set[network.LiaisonID], out *Outcome) error {
	if len(ids) == 0 {
		return nil
	}
	entities, err := e.resolver.EntitiesForLiaisons(ids)
	if err != nil {
		return err
	}

	removed, err := deselectReported(ctx, e.selected.Liaisons, ids)
	if err != nil {
		return network.NewSourceError("deselect", "liaison", err)
	}
	out.RemovedLiaisons.Merge(removed)

	gone, err := deselectReported(ctx, e.selected.Entities, entities)
	if err != nil {
		return network.NewSourceError("deselect", "entity", err)
	}
	out.RemovedEntities.Merge(gone)
	return nil
}

// deselectReported deselects ids and returns those that were selected
func deselectReported[K comparable](ctx context.Context, sel network.Selection[K], ids network.Set[K]) (network.Set[K], error) {
	if sel == nil || len(ids) == 0 {
		return make(network.Set[K]), nil
	}
	current, err := sel.Selected(ctx)
	if err != nil {
		return nil, err
	}
	removed := ids.Intersect(current)
	if len(removed) == 0 {
		return removed, nil
	}
	if err := sel.Deselect(ctx, removed); err != nil {
		return nil, err
	}
	return removed, nil
}
