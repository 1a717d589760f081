package network

import "context"

// EdgeFilter restricts an edge query. The zero value matches every edge.
type EdgeFilter struct {
	IDs   Set[EdgeID]       // nil = all ids
	Match func(*Edge) bool // attribute predicate, nil = no predicate
}

// matches reports whether e passes the filter
func (f EdgeFilter) matches(e *Edge) bool {
	if f.IDs != nil && !f.IDs.Has(e.ID) {
		return false
	}
	if f.Match != nil && !f.Match(e) {
		return false
	}
	return true
}

// LiaisonFilter restricts a liaison query. The zero value matches every liaison.
type LiaisonFilter struct {
	Nodes    Set[NodeID]   // nil = any node
	Entities Set[EntityID] // nil = any entity
}

func (f LiaisonFilter) matches(l *Liaison) bool {
	if f.Nodes != nil && !f.Nodes.Has(l.Node) {
		return false
	}
	if f.Entities != nil && !f.Entities.Has(l.Entity) {
		return false
	}
	return true
}

// EdgeSource supplies the edges of both collections
type EdgeSource interface {
	// Edges returns the edges of a collection matching f, in source order
	Edges(c Collection, f EdgeFilter) ([]Edge, error)
	// HasCollection reports whether the optional collection is present
	HasCollection(c Collection) bool
}

// LiaisonSource supplies liaisons and the entities they point to
type LiaisonSource interface {
	Liaisons(f LiaisonFilter) ([]Liaison, error)
	Entities(ids Set[EntityID]) ([]Entity, error)
}

// NodeSource supplies structure attributes
type NodeSource interface {
	Node(id NodeID) (NodeInfo, bool)
}

// Selection is the "currently highlighted" id set of one layer.
// It is owned by the caller's presentation layer and may change between calls.
type Selection[K comparable] interface {
	Selected(ctx context.Context) (Set[K], error)
	Select(ctx context.Context, ids Set[K]) error
	Deselect(ctx context.Context, ids Set[K]) error
	Clear(ctx context.Context) error
}

// Selections groups the selection of every layer. Channels, Liaisons and
// Entities may be nil when the layer is not loaded.
type Selections struct {
	Conduits Selection[EdgeID]
	Channels Selection[EdgeID]
	Liaisons Selection[LiaisonID]
	Entities Selection[EntityID]
}

// Edges returns the selection of an edge collection, or nil
func (s Selections) Edges(c Collection) Selection[EdgeID] {
	switch c {
	case Conduit:
		return s.Conduits
	case Channel:
		return s.Channels
	default:
		return nil
	}
}

// SelectedEdges reads the current edge selection of every collection
func (s Selections) SelectedEdges(ctx context.Context) (EdgeSets, error) {
	out := NewEdgeSets()
	for _, c := range Collections {
		sel := s.Edges(c)
		if sel == nil {
			continue
		}
		ids, err := sel.Selected(ctx)
		if err != nil {
			return nil, NewSourceError("selected", c.String(), err)
		}
		out[c] = ids
	}
	return out, nil
}

// DeselectEdges deselects ids per collection, skipping empty sets
func (s Selections) DeselectEdges(ctx context.Context, ids EdgeSets) error {
	for _, c := range Collections {
		sel := s.Edges(c)
		if sel == nil || len(ids[c]) == 0 {
			continue
		}
		if err := sel.Deselect(ctx, ids[c]); err != nil {
			return NewSourceError("deselect", c.String(), err)
		}
	}
	return nil
}

// ReplaceEdges clears every edge selection then selects ids
func (s Selections) ReplaceEdges(ctx context.Context, ids EdgeSets) error {
	for _, c := range Collections {
		sel := s.Edges(c)
		if sel == nil {
			continue
		}
		if err := Replace(ctx, sel, ids[c]); err != nil {
			return NewSourceError("replace", c.String(), err)
		}
	}
	return nil
}

// Replacer is implemented by selections that swap their content in one step
type Replacer[K comparable] interface {
	Replace(ctx context.Context, ids Set[K]) error
}

// Replace clears sel then selects ids. Clear is always paired with select
// so no stale ids survive.
func Replace[K comparable](ctx context.Context, sel Selection[K], ids Set[K]) error {
	if sel == nil {
		return nil
	}
	if r, ok := sel.(Replacer[K]); ok {
		return r.Replace(ctx, ids)
	}
	if err := sel.Clear(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return sel.Select(ctx, ids)
}

// Deselect deselects ids from sel, ignoring nil selections and empty sets
func Deselect[K comparable](ctx context.Context, sel Selection[K], ids Set[K]) error {
	if sel == nil || len(ids) == 0 {
		return nil
	}
	return sel.Deselect(ctx, ids)
}

// SelectedOf reads sel, returning an empty set for nil selections
func SelectedOf[K comparable](ctx context.Context, sel Selection[K]) (Set[K], error) {
	if sel == nil {
		return make(Set[K]), nil
	}
	return sel.Selected(ctx)
}

// ClearAll clears every non-nil selection
func (s Selections) ClearAll(ctx context.Context) error {
	for _, c := range Collections {
		if sel := s.Edges(c); sel != nil {
			if err := sel.Clear(ctx); err != nil {
				return NewSourceError("clear", c.String(), err)
			}
		}
	}
	if s.Liaisons != nil {
		if err := s.Liaisons.Clear(ctx); err != nil {
			return NewSourceError("clear", "liaison", err)
		}
	}
	if s.Entities != nil {
		if err := s.Entities.Clear(ctx); err != nil {
			return NewSourceError("clear", "entity", err)
		}
	}
	return nil
}
