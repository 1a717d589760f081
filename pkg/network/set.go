package network

import (
	"cmp"
	"slices"
)

// Set is an unordered set of comparable ids
type Set[K comparable] map[K]struct{}

// NewSet creates a set holding ids
func NewSet[K comparable](ids ...K) Set[K] {
	s := make(Set[K], len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts ids into the set
func (s Set[K]) Add(ids ...K) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports membership. A nil set contains nothing.
func (s Set[K]) Has(id K) bool {
	_, ok := s[id]
	return ok
}

// Remove deletes ids from the set
func (s Set[K]) Remove(ids ...K) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Merge adds every member of other
func (s Set[K]) Merge(other Set[K]) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Clone returns a copy of the set
func (s Set[K]) Clone() Set[K] {
	out := make(Set[K], len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Union returns s ∪ other
func (s Set[K]) Union(other Set[K]) Set[K] {
	out := s.Clone()
	out.Merge(other)
	return out
}

// Difference returns s − other
func (s Set[K]) Difference(other Set[K]) Set[K] {
	out := make(Set[K])
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns s ∩ other
func (s Set[K]) Intersect(other Set[K]) Set[K] {
	out := make(Set[K])
	for id := range s {
		if other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same members
func (s Set[K]) Equal(other Set[K]) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Slice returns the members in unspecified order
func (s Set[K]) Slice() []K {
	out := make([]K, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Sorted returns the members of an ordered set in ascending order
func Sorted[K cmp.Ordered](s Set[K]) []K {
	out := s.Slice()
	slices.Sort(out)
	return out
}

// EdgeSets holds one edge id set per collection
type EdgeSets map[Collection]Set[EdgeID]

// NewEdgeSets creates empty sets for every collection
func NewEdgeSets() EdgeSets {
	es := make(EdgeSets, len(Collections))
	for _, c := range Collections {
		es[c] = make(Set[EdgeID])
	}
	return es
}

// Of returns the set of a collection, creating it when missing
func (es EdgeSets) Of(c Collection) Set[EdgeID] {
	s, ok := es[c]
	if !ok {
		s = make(Set[EdgeID])
		es[c] = s
	}
	return s
}

// Add records an edge reference
func (es EdgeSets) Add(ref EdgeRef) {
	es.Of(ref.Collection).Add(ref.ID)
}

// Has reports whether the reference is present
func (es EdgeSets) Has(ref EdgeRef) bool {
	return es[ref.Collection].Has(ref.ID)
}

// Merge adds every id of other
func (es EdgeSets) Merge(other EdgeSets) {
	for c, ids := range other {
		es.Of(c).Merge(ids)
	}
}

// Difference returns es − other per collection
func (es EdgeSets) Difference(other EdgeSets) EdgeSets {
	out := NewEdgeSets()
	for c, ids := range es {
		out[c] = ids.Difference(other[c])
	}
	return out
}

// Len returns the total number of ids across collections
func (es EdgeSets) Len() int {
	n := 0
	for _, ids := range es {
		n += len(ids)
	}
	return n
}

// Refs returns every reference, sorted by collection then id
func (es EdgeSets) Refs() []EdgeRef {
	out := make([]EdgeRef, 0, es.Len())
	for _, c := range Collections {
		for _, id := range Sorted(es[c]) {
			out = append(out, EdgeRef{Collection: c, ID: id})
		}
	}
	return out
}

// Clone returns a deep copy
func (es EdgeSets) Clone() EdgeSets {
	out := NewEdgeSets()
	for c, ids := range es {
		out[c] = ids.Clone()
	}
	return out
}
