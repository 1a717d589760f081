// Package liaison maps network nodes to the external entities linked to them.
package liaison

import (
	"context"
	"fmt"

	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/topology"
)

// Resolver answers node/liaison/entity lookups through the topology index.
// Lookups are total: missing ids are skipped and empty input gives empty output.
type Resolver struct {
	index    *topology.Index
	source   network.LiaisonSource
	selected network.Selections
}

// NewResolver creates a resolver. source may be nil when only id lookups are needed.
func NewResolver(index *topology.Index, source network.LiaisonSource, sel network.Selections) *Resolver {
	return &Resolver{index: index, source: source, selected: sel}
}

// LiaisonsForNodes returns the liaisons attached to any of nodes
func (r *Resolver) LiaisonsForNodes(nodes network.Set[network.NodeID]) (network.Set[network.LiaisonID], error) {
	out := make(network.Set[network.LiaisonID])
	if len(nodes) == 0 {
		return out, nil
	}
	byNode, err := r.index.Liaisons()
	if err != nil {
		return nil, fmt.Errorf("resolve liaisons: %w", err)
	}
	for node := range nodes {
		for _, l := range byNode[node] {
			out.Add(l.ID)
		}
	}
	return out, nil
}

// EntitiesForLiaisons returns the entities pointed to by liaisons
func (r *Resolver) EntitiesForLiaisons(ids network.Set[network.LiaisonID]) (network.Set[network.EntityID], error) {
	out := make(network.Set[network.EntityID])
	for id := range ids {
		l, ok, err := r.index.Liaison(id)
		if err != nil {
			return nil, fmt.Errorf("resolve entities: %w", err)
		}
		if ok {
			out.Add(l.Entity)
		}
	}
	return out, nil
}

// EntitiesForNodes composes LiaisonsForNodes and EntitiesForLiaisons
func (r *Resolver) EntitiesForNodes(nodes network.Set[network.NodeID]) (network.Set[network.LiaisonID], network.Set[network.EntityID], error) {
	liaisons, err := r.LiaisonsForNodes(nodes)
	if err != nil {
		return nil, nil, err
	}
	entities, err := r.EntitiesForLiaisons(liaisons)
	if err != nil {
		return nil, nil, err
	}
	return liaisons, entities, nil
}

// LiaisonsForEntity returns every liaison of an entity and the nodes they reach
func (r *Resolver) LiaisonsForEntity(entity network.EntityID) (network.Set[network.LiaisonID], network.Set[network.NodeID], error) {
	ids := make(network.Set[network.LiaisonID])
	nodes := make(network.Set[network.NodeID])
	byEntity, err := r.index.LiaisonsOfEntity()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve entity %s: %w", entity, err)
	}
	for _, l := range byEntity[entity] {
		ids.Add(l.ID)
		nodes.Add(l.Node)
	}
	return ids, nodes, nil
}

// SelectForNodes replaces the liaison and entity selections by those attached
// to nodes and returns the entity ids
func (r *Resolver) SelectForNodes(ctx context.Context, nodes network.Set[network.NodeID]) (network.Set[network.EntityID], error) {
	liaisons, entities, err := r.EntitiesForNodes(nodes)
	if err != nil {
		return nil, err
	}
	if err := network.Replace(ctx, r.selected.Liaisons, liaisons); err != nil {
		return nil, network.NewSourceError("replace", "liaison", err)
	}
	if err := network.Replace(ctx, r.selected.Entities, entities); err != nil {
		return nil, network.NewSourceError("replace", "entity", err)
	}
	return entities, nil
}

// AddForNodes selects the liaisons attached to nodes without clearing the
// current liaison selection
func (r *Resolver) AddForNodes(ctx context.Context, nodes network.Set[network.NodeID]) (network.Set[network.LiaisonID], error) {
	liaisons, err := r.LiaisonsForNodes(nodes)
	if err != nil {
		return nil, err
	}
	if r.selected.Liaisons == nil || len(liaisons) == 0 {
		return liaisons, nil
	}
	if err := r.selected.Liaisons.Select(ctx, liaisons); err != nil {
		return nil, network.NewSourceError("select", "liaison", err)
	}
	return liaisons, nil
}

// Details returns entity attributes for a listing, sorted by id
func (r *Resolver) Details(ids network.Set[network.EntityID]) ([]network.Entity, error) {
	if len(ids) == 0 || r.source == nil {
		return nil, nil
	}
	ents, err := r.source.Entities(ids)
	if err != nil {
		return nil, network.NewSourceError("entities", "entity", err)
	}
	return ents, nil
}
