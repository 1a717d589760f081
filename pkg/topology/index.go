package topology

import (
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/network"
)

// Map names reported to the recorder
const (
	MapEdges    = "edges"
	MapLiaisons = "liaisons"
)

// Adjacent is one edge incident to a node
type Adjacent struct {
	Ref  network.EdgeRef
	Edge *network.Edge
}

// Recorder receives cache events, typically a metrics registry
type Recorder interface {
	RecordTopologyBuild(mapName string, d time.Duration)
	RecordTopologyLookup(hit bool)
}

// Stats reports cache activity since the index was created or reset
type Stats struct {
	Builds  uint64
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Option configures an Index
type Option func(*Index)

// WithLogger sets the logger used for build events
func WithLogger(l logging.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// WithRecorder sets the cache event recorder
func WithRecorder(r Recorder) Option {
	return func(ix *Index) { ix.recorder = r }
}

// edgeMaps is the result of one scan of both collections
type edgeMaps struct {
	incoming map[network.NodeID][]Adjacent
	outgoing map[network.NodeID][]Adjacent
	byRef    map[network.EdgeRef]*network.Edge
}

// liaisonMaps is the result of one scan of the liaison source
type liaisonMaps struct {
	byNode   map[network.NodeID][]network.Liaison
	byEntity map[network.EntityID][]network.Liaison
	byID     map[network.LiaisonID]network.Liaison
}

// Index lazily builds the adjacency and liaison maps of a network.
// Maps are rebuilt, never patched, after Invalidate. Returned maps are
// shared and must not be modified by callers.
type Index struct {
	edgeSrc    network.EdgeSource
	liaisonSrc network.LiaisonSource
	logger     logging.Logger
	recorder   Recorder

	mu       sync.Mutex
	edges    *edgeMaps
	liaisons *liaisonMaps
	builds   uint64
	hits     uint64
	misses   uint64
}

// NewIndex creates an index over the given sources. liaisons may be nil
// when no liaison layer is loaded.
func NewIndex(edges network.EdgeSource, liaisons network.LiaisonSource, opts ...Option) *Index {
	ix := &Index{
		edgeSrc:    edges,
		liaisonSrc: liaisons,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Incoming returns edges grouped by end node
func (ix *Index) Incoming() (map[network.NodeID][]Adjacent, error) {
	m, err := ix.edgeMaps()
	if err != nil {
		return nil, err
	}
	return m.incoming, nil
}

// Outgoing returns edges grouped by start node
func (ix *Index) Outgoing() (map[network.NodeID][]Adjacent, error) {
	m, err := ix.edgeMaps()
	if err != nil {
		return nil, err
	}
	return m.outgoing, nil
}

// Edge returns the cached edge behind ref, or nil when it is not indexed
func (ix *Index) Edge(ref network.EdgeRef) (*network.Edge, error) {
	m, err := ix.edgeMaps()
	if err != nil {
		return nil, err
	}
	return m.byRef[ref], nil
}

// Liaisons returns liaisons grouped by node
func (ix *Index) Liaisons() (map[network.NodeID][]network.Liaison, error) {
	m, err := ix.liaisonMaps()
	if err != nil {
		return nil, err
	}
	return m.byNode, nil
}

// LiaisonsOfEntity returns liaisons grouped by entity
func (ix *Index) LiaisonsOfEntity() (map[network.EntityID][]network.Liaison, error) {
	m, err := ix.liaisonMaps()
	if err != nil {
		return nil, err
	}
	return m.byEntity, nil
}

// Liaison returns a liaison by id
func (ix *Index) Liaison(id network.LiaisonID) (network.Liaison, bool, error) {
	m, err := ix.liaisonMaps()
	if err != nil {
		return network.Liaison{}, false, err
	}
	l, ok := m.byID[id]
	return l, ok, nil
}

// Invalidate drops every cached map; the next access rebuilds
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.edges = nil
	ix.liaisons = nil
	ix.logger.Debug("topology cache invalidated")
}

// Stats returns cache statistics
func (ix *Index) Stats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	s := Stats{Builds: ix.builds, Hits: ix.hits, Misses: ix.misses}
	if total := ix.hits + ix.misses; total > 0 {
		s.HitRate = float64(ix.hits) / float64(total)
	}
	return s
}

// ResetStats resets the counters
func (ix *Index) ResetStats() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.builds, ix.hits, ix.misses = 0, 0, 0
}

func (ix *Index) edgeMaps() (*edgeMaps, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.edges != nil {
		ix.hit(true)
		return ix.edges, nil
	}
	ix.hit(false)

	start := time.Now()
	m, err := scanEdges(ix.edgeSrc)
	if err != nil {
		ix.logger.Error("topology build failed",
			logging.String("map", MapEdges),
			logging.Error(err))
		return nil, err
	}
	ix.edges = m
	ix.built(MapEdges, start, len(m.byRef))
	return m, nil
}

func (ix *Index) liaisonMaps() (*liaisonMaps, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.liaisons != nil {
		ix.hit(true)
		return ix.liaisons, nil
	}
	ix.hit(false)

	start := time.Now()
	m, err := scanLiaisons(ix.liaisonSrc)
	if err != nil {
		ix.logger.Error("topology build failed",
			logging.String("map", MapLiaisons),
			logging.Error(err))
		return nil, err
	}
	ix.liaisons = m
	ix.built(MapLiaisons, start, len(m.byID))
	return m, nil
}

// hit records a lookup; caller holds mu
func (ix *Index) hit(ok bool) {
	if ok {
		ix.hits++
	} else {
		ix.misses++
	}
	if ix.recorder != nil {
		ix.recorder.RecordTopologyLookup(ok)
	}
}

// built records a completed build; caller holds mu
func (ix *Index) built(mapName string, start time.Time, n int) {
	ix.builds++
	elapsed := time.Since(start)
	if ix.recorder != nil {
		ix.recorder.RecordTopologyBuild(mapName, elapsed)
	}
	ix.logger.Debug("topology map built",
		logging.String("map", mapName),
		logging.Count(n),
		logging.Latency(elapsed))
}

// scanEdges reads both collections once. An edge is keyed on each side whose
// endpoint is known, so a segment with an unknown far end is still reachable
// as a leaf.
func scanEdges(src network.EdgeSource) (*edgeMaps, error) {
	m := &edgeMaps{
		incoming: make(map[network.NodeID][]Adjacent),
		outgoing: make(map[network.NodeID][]Adjacent),
		byRef:    make(map[network.EdgeRef]*network.Edge),
	}
	if src == nil {
		return m, nil
	}

	for _, c := range network.Collections {
		if !src.HasCollection(c) {
			continue
		}
		edges, err := src.Edges(c, network.EdgeFilter{})
		if err != nil {
			return nil, network.NewSourceError("scan", c.String(), err)
		}
		for i := range edges {
			e := &edges[i]
			if e.Collection != c {
				return nil, network.NewSourceError("scan", c.String(),
					fmt.Errorf("%w: edge %d tagged %s", network.ErrUnknownCollection, e.ID, e.Collection))
			}
			ref := e.Ref()
			if _, dup := m.byRef[ref]; dup {
				return nil, network.NewSourceError("scan", c.String(),
					fmt.Errorf("%w: %s", network.ErrDuplicateEdge, ref))
			}
			m.byRef[ref] = e
			adj := Adjacent{Ref: ref, Edge: e}
			// traces report an edge with an unknown far end but never walk past it
			if end, ok := e.End.Get(); ok {
				m.incoming[end] = append(m.incoming[end], adj)
			}
			if start, ok := e.Start.Get(); ok {
				m.outgoing[start] = append(m.outgoing[start], adj)
			}
		}
	}
	return m, nil
}

func scanLiaisons(src network.LiaisonSource) (*liaisonMaps, error) {
	m := &liaisonMaps{
		byNode:   make(map[network.NodeID][]network.Liaison),
		byEntity: make(map[network.EntityID][]network.Liaison),
		byID:     make(map[network.LiaisonID]network.Liaison),
	}
	if src == nil {
		return m, nil
	}

	liaisons, err := src.Liaisons(network.LiaisonFilter{})
	if err != nil {
		return nil, network.NewSourceError("scan", "liaison", err)
	}
	for _, l := range liaisons {
		if !network.ParseEndpoint(string(l.Node)).IsKnown() || l.Entity == "" {
			continue
		}
		m.byNode[l.Node] = append(m.byNode[l.Node], l)
		m.byEntity[l.Entity] = append(m.byEntity[l.Entity], l)
		m.byID[l.ID] = l
	}
	return m, nil
}
