package network

import (
	"context"
	"fmt"
	"sync"
)

// MemorySource is an in-memory EdgeSource, LiaisonSource and NodeSource.
// Edges are returned in insertion order.
type MemorySource struct {
	mu        sync.RWMutex
	edges     map[Collection][]Edge
	edgeIndex map[EdgeRef]int
	present   map[Collection]bool
	liaisons  []Liaison
	liaisonID map[LiaisonID]struct{}
	entities  map[EntityID]Entity
	nodes     map[NodeID]NodeInfo
}

// NewMemorySource creates an empty source. The conduit collection is always
// present; the channel collection appears once EnableCollection or AddEdge
// touches it.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		edges:     make(map[Collection][]Edge),
		edgeIndex: make(map[EdgeRef]int),
		present:   map[Collection]bool{Conduit: true},
		liaisonID: make(map[LiaisonID]struct{}),
		entities:  make(map[EntityID]Entity),
		nodes:     make(map[NodeID]NodeInfo),
	}
}

// ReplaceWith swaps in the content of other, which must not be used afterwards.
// Readers see either the old or the new network, never a mix.
func (m *MemorySource) ReplaceWith(other *MemorySource) {
	other.mu.Lock()
	edges, edgeIndex, present := other.edges, other.edgeIndex, other.present
	liaisons, liaisonID := other.liaisons, other.liaisonID
	entities, nodes := other.entities, other.nodes
	other.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges, m.edgeIndex, m.present = edges, edgeIndex, present
	m.liaisons, m.liaisonID = liaisons, liaisonID
	m.entities, m.nodes = entities, nodes
}

// EnableCollection marks an optional collection as loaded, even when empty
func (m *MemorySource) EnableCollection(c Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present[c] = true
}

// AddEdge stores an edge. Ids must be unique within the collection.
func (m *MemorySource) AddEdge(e Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := e.Ref()
	if _, exists := m.edgeIndex[ref]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, ref)
	}
	m.edgeIndex[ref] = len(m.edges[e.Collection])
	m.edges[e.Collection] = append(m.edges[e.Collection], e)
	m.present[e.Collection] = true
	return nil
}

// RemoveEdge deletes an edge, reporting whether it existed
func (m *MemorySource) RemoveEdge(ref EdgeRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.edgeIndex[ref]
	if !ok {
		return false
	}
	list := m.edges[ref.Collection]
	m.edges[ref.Collection] = append(list[:pos:pos], list[pos+1:]...)
	delete(m.edgeIndex, ref)
	for i := pos; i < len(m.edges[ref.Collection]); i++ {
		m.edgeIndex[m.edges[ref.Collection][i].Ref()] = i
	}
	return true
}

// AddLiaison stores a liaison. Liaisons whose node or entity is empty are
// ignored, matching ingestion of sentinel records.
func (m *MemorySource) AddLiaison(l Liaison) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ParseEndpoint(string(l.Node)).IsKnown() || l.Entity == "" {
		return nil
	}
	if _, exists := m.liaisonID[l.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateLiaison, l.ID)
	}
	m.liaisonID[l.ID] = struct{}{}
	m.liaisons = append(m.liaisons, l)
	return nil
}

// AddEntity stores or replaces an entity
func (m *MemorySource) AddEntity(e Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
}

// AddNode stores or replaces structure attributes
func (m *MemorySource) AddNode(n NodeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
}

// Edges implements EdgeSource
func (m *MemorySource) Edges(c Collection, f EdgeFilter) ([]Edge, error) {
	if c != Conduit && c != Channel {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCollection, int(c))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Edge, 0, len(m.edges[c]))
	for i := range m.edges[c] {
		if f.matches(&m.edges[c][i]) {
			out = append(out, m.edges[c][i])
		}
	}
	return out, nil
}

// Stats reports how many edges and liaisons are loaded
func (m *MemorySource) Stats() (edges, liaisons int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, es := range m.edges {
		edges += len(es)
	}
	return edges, len(m.liaisons)
}

// HasCollection implements EdgeSource
func (m *MemorySource) HasCollection(c Collection) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.present[c]
}

// Liaisons implements LiaisonSource
func (m *MemorySource) Liaisons(f LiaisonFilter) ([]Liaison, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Liaison, 0, len(m.liaisons))
	for i := range m.liaisons {
		if f.matches(&m.liaisons[i]) {
			out = append(out, m.liaisons[i])
		}
	}
	return out, nil
}

// Entities implements LiaisonSource. Unknown ids are skipped.
func (m *MemorySource) Entities(ids Set[EntityID]) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entity, 0, len(ids))
	for _, id := range Sorted(ids) {
		if e, ok := m.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Node implements NodeSource
func (m *MemorySource) Node(id NodeID) (NodeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// MemorySelection is a mutex-guarded in-memory Selection
type MemorySelection[K comparable] struct {
	mu  sync.Mutex
	ids Set[K]
}

// NewMemorySelection creates an empty selection
func NewMemorySelection[K comparable]() *MemorySelection[K] {
	return &MemorySelection[K]{ids: make(Set[K])}
}

// Selected returns a copy of the selected ids
func (s *MemorySelection[K]) Selected(ctx context.Context) (Set[K], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Clone(), nil
}

// Select adds ids to the selection
func (s *MemorySelection[K]) Select(ctx context.Context, ids Set[K]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids.Merge(ids)
	return nil
}

// Deselect removes ids from the selection
func (s *MemorySelection[K]) Deselect(ctx context.Context, ids Set[K]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range ids {
		delete(s.ids, id)
	}
	return nil
}

// Clear empties the selection
func (s *MemorySelection[K]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(Set[K])
	return nil
}

// NewMemorySelections returns in-memory selections for every layer
func NewMemorySelections() Selections {
	return Selections{
		Conduits: NewMemorySelection[EdgeID](),
		Channels: NewMemorySelection[EdgeID](),
		Liaisons: NewMemorySelection[LiaisonID](),
		Entities: NewMemorySelection[EntityID](),
	}
}
