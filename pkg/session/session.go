// Package session is the entry point used by operators: it wires the
// topology index, tracer, selection engine and liaison resolver over one
// network and one set of selections, and records the visits made so far.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/sewertrace/pkg/diagnostics"
	"github.com/dd0wney/sewertrace/pkg/events"
	"github.com/dd0wney/sewertrace/pkg/liaison"
	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/metrics"
	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/selection"
	"github.com/dd0wney/sewertrace/pkg/topology"
	"github.com/dd0wney/sewertrace/pkg/trace"
)

const tracerName = "github.com/dd0wney/sewertrace/pkg/session"

// Network is everything a session reads from the data layer
type Network interface {
	network.EdgeSource
	network.LiaisonSource
	network.NodeSource
}

// Session holds one operator's tracing state
type Session struct {
	id       string
	index    *topology.Index
	tracer   *trace.Tracer
	engine   *selection.Engine
	resolver *liaison.Resolver
	checker  *diagnostics.Checker
	nodes    network.NodeSource
	selected network.Selections

	logger  logging.Logger
	metrics *metrics.Registry
	events  *events.Bus
	spans   oteltrace.Tracer
	now     func() time.Time

	mu         sync.Mutex
	start      network.NodeID
	direction  trace.Direction
	filters    trace.Filters
	lastNodes  network.Set[network.NodeID]
	visits     []network.Visit
	designated network.EntityID
	note       string
}

type Option func(*Session)

// WithID names the session; a random UUID is used otherwise
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records operations and cache events in r
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Session) { s.metrics = r }
}

// WithEvents publishes every selection change on bus
func WithEvents(bus *events.Bus) Option {
	return func(s *Session) { s.events = bus }
}

// WithClock overrides the visit timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New wires a session over net and sel
func New(net Network, sel network.Selections, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		nodes:     net,
		selected:  sel,
		logger:    logging.NewNopLogger(),
		spans:     otel.Tracer(tracerName),
		now:       time.Now,
		lastNodes: make(network.Set[network.NodeID]),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Session(s.id))

	ixOpts := []topology.Option{topology.WithLogger(s.logger)}
	if s.metrics != nil {
		ixOpts = append(ixOpts, topology.WithRecorder(s.metrics))
	}
	s.index = topology.NewIndex(net, net, ixOpts...)
	s.tracer = trace.NewTracer(s.index)
	s.resolver = liaison.NewResolver(s.index, net, sel)
	s.engine = selection.NewEngine(s.index, s.tracer, s.resolver, sel, s.logger)
	s.checker = diagnostics.NewChecker(s.index, net)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Index exposes the adjacency cache, mainly for statistics
func (s *Session) Index() *topology.Index {
	return s.index
}

// Trace walks the network from start, makes the reached edges the edge
// selection and selects the liaisons and entities at the reached nodes.
func (s *Session) Trace(ctx context.Context, start network.NodeID, dir trace.Direction, f trace.Filters) (*trace.Result, error) {
	res, _, err := s.trace(ctx, "trace", start, dir, f)
	return res, err
}

// TraceForEntities traces upstream from start and returns the entities
// that may be responsible for a pollution observed there.
func (s *Session) TraceForEntities(ctx context.Context, start network.NodeID, f trace.Filters) (*trace.Result, []network.Entity, error) {
	res, entities, err := s.trace(ctx, "trace-entities", start, trace.Upstream, f)
	if err != nil {
		return nil, nil, err
	}
	details, err := s.resolver.Details(entities)
	if err != nil {
		return nil, nil, s.fail(ctx, "trace-entities", err)
	}
	return res, details, nil
}

func (s *Session) trace(ctx context.Context, op string, start network.NodeID, dir trace.Direction, f trace.Filters) (*trace.Result, network.Set[network.EntityID], error) {
	ctx, span := s.spans.Start(ctx, "session."+op, oteltrace.WithAttributes(
		attribute.String("start", string(start)),
		attribute.String("direction", dir.String()),
	))
	defer span.End()

	began := s.now()
	res, err := s.tracer.Trace(start, dir, f)
	if err != nil {
		return nil, nil, s.spanError(span, op, err)
	}
	if err := s.selected.ReplaceEdges(ctx, res.Edges); err != nil {
		return nil, nil, s.spanError(span, op, err)
	}
	reached := res.Endpoints()
	entities, err := s.resolver.SelectForNodes(ctx, reached)
	if err != nil {
		return nil, nil, s.spanError(span, op, err)
	}

	s.mu.Lock()
	s.start, s.direction, s.filters = start, dir, f
	s.lastNodes = reached
	s.mu.Unlock()

	elapsed := s.now().Sub(began)
	span.SetAttributes(attribute.Int("edges", res.Count()), attribute.Int("entities", len(entities)))
	s.logger.Info("trace completed",
		logging.Node(string(start)),
		logging.Direction(dir.String()),
		logging.Edges(res.Count()),
		logging.Float64("length", res.TotalLength),
		logging.Int("entities", len(entities)),
		logging.Latency(elapsed))
	if s.metrics != nil {
		s.metrics.RecordTrace(dir.String(), metrics.ModeFull, elapsed, res.Count())
		s.recordReplace()
	}
	s.emit(events.Event{
		Kind:      events.KindTrace,
		Node:      start,
		Direction: dir.String(),
		Edges:     res.Count(),
		Entities:  network.Sorted(entities),
	})
	return res, entities, nil
}

// Visit records a field visit at node then narrows the selection
func (s *Session) Visit(ctx context.Context, node network.NodeID, pollution bool, keep network.Set[network.BranchID]) (*selection.Outcome, error) {
	ctx, span := s.spans.Start(ctx, "session.visit", oteltrace.WithAttributes(
		attribute.String("node", string(node)),
		attribute.Bool("pollution", pollution),
		attribute.Int("keep", len(keep)),
	))
	defer span.End()

	s.mu.Lock()
	s.visits = append(s.visits, network.Visit{Node: node, Pollution: pollution, At: s.now().UTC()})
	s.mu.Unlock()

	out, err := s.engine.Visit(ctx, node, pollution, keep)
	if err != nil {
		return nil, s.spanError(span, "visit", err)
	}

	span.SetAttributes(
		attribute.Int("removed_edges", out.RemovedEdges.Len()),
		attribute.Int("removed_entities", len(out.RemovedEntities)),
	)
	if s.metrics != nil {
		s.metrics.RecordVisit(pollution, out.RemovedEdges.Len(), len(out.RemovedEntities))
		if out.RemovedEdges.Len() > 0 {
			s.metrics.RecordSelectionOperation("edge", "deselect")
		}
		if len(out.RemovedLiaisons) > 0 {
			s.metrics.RecordSelectionOperation("liaison", "deselect")
		}
		if len(out.RemovedEntities) > 0 {
			s.metrics.RecordSelectionOperation("entity", "deselect")
		}
	}
	s.emit(events.Event{
		Kind:      events.KindVisit,
		Node:      node,
		Pollution: pollution,
		Kept:      len(out.Kept),
		Removed:   out.RemovedEdges.Len(),
		Entities:  network.Sorted(out.RemovedEntities),
	})
	return out, nil
}

// Branches lists the branches a visit at node would decide on
func (s *Session) Branches(node network.NodeID) ([]network.Branch, error) {
	return s.engine.Branches(node)
}

// ResolveEntities selects the liaisons and entities attached to nodes and
// returns the entity details
func (s *Session) ResolveEntities(ctx context.Context, nodes network.Set[network.NodeID]) ([]network.Entity, error) {
	ctx, span := s.spans.Start(ctx, "session.resolve", oteltrace.WithAttributes(
		attribute.Int("nodes", len(nodes)),
	))
	defer span.End()

	ids, err := s.resolver.SelectForNodes(ctx, nodes)
	if err != nil {
		return nil, s.spanError(span, "resolve", err)
	}
	details, err := s.resolver.Details(ids)
	if err != nil {
		return nil, s.spanError(span, "resolve", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSelectionOperation("liaison", "replace")
		s.metrics.RecordSelectionOperation("entity", "replace")
	}
	s.logger.Debug("entities resolved", logging.Count(len(ids)))
	s.emit(events.Event{Kind: events.KindResolve, Entities: network.Sorted(ids)})
	return details, nil
}

// LastNodes returns the nodes reached by the last trace or designation
func (s *Session) LastNodes() network.Set[network.NodeID] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNodes.Clone()
}

// InvalidateCaches drops the adjacency maps; the next lookup rebuilds them
func (s *Session) InvalidateCaches() {
	s.index.Invalidate()
	s.logger.Info("topology caches invalidated")
	s.emit(events.Event{Kind: events.KindReload})
}

// Designation is the outcome of DesignateEntity
type Designation struct {
	Entity network.EntityID
	Starts network.Set[network.NodeID]
	Result *trace.Result
}

// DesignateEntity selects an entity with all its liaisons and traces
// downstream from the nodes it discharges into. When networkType is set only
// nodes of that network type are used as starts.
func (s *Session) DesignateEntity(ctx context.Context, entity network.EntityID, networkType network.Code) (*Designation, error) {
	ctx, span := s.spans.Start(ctx, "session.designate", oteltrace.WithAttributes(
		attribute.String("entity", string(entity)),
		attribute.String("network", string(networkType)),
	))
	defer span.End()

	liaisons, nodes, err := s.resolver.LiaisonsForEntity(entity)
	if err != nil {
		return nil, s.spanError(span, "designate", err)
	}
	if err := network.Replace(ctx, s.selected.Liaisons, liaisons); err != nil {
		return nil, s.spanError(span, "designate", network.NewSourceError("replace", "liaison", err))
	}
	ents := make(network.Set[network.EntityID])
	if len(liaisons) > 0 {
		ents.Add(entity)
	}
	if err := network.Replace(ctx, s.selected.Entities, ents); err != nil {
		return nil, s.spanError(span, "designate", network.NewSourceError("replace", "entity", err))
	}

	starts := s.startsOfType(nodes, networkType)
	results := make([]*trace.Result, 0, len(starts))
	for _, node := range network.Sorted(starts) {
		res, err := s.tracer.Trace(node, trace.Downstream, trace.Filters{})
		if err != nil {
			return nil, s.spanError(span, "designate", err)
		}
		results = append(results, res)
	}
	union := trace.Union(s.lookup, results...)

	if err := s.selected.ReplaceEdges(ctx, union.Edges); err != nil {
		return nil, s.spanError(span, "designate", err)
	}
	reached := union.Endpoints()
	if _, err := s.resolver.AddForNodes(ctx, reached); err != nil {
		return nil, s.spanError(span, "designate", err)
	}

	s.mu.Lock()
	s.designated = entity
	s.lastNodes = reached
	s.mu.Unlock()

	s.logger.Info("entity designated",
		logging.String("entity", string(entity)),
		logging.Count(len(starts)),
		logging.Edges(union.Count()))
	if s.metrics != nil {
		s.metrics.RecordSelectionOperation("edge", "replace")
	}
	s.emit(events.Event{
		Kind:     events.KindDesignate,
		Entity:   entity,
		Edges:    union.Count(),
		Entities: []network.EntityID{entity},
	})
	return &Designation{Entity: entity, Starts: starts, Result: union}, nil
}

func (s *Session) startsOfType(nodes network.Set[network.NodeID], networkType network.Code) network.Set[network.NodeID] {
	if !networkType.IsSet() {
		return nodes.Clone()
	}
	out := make(network.Set[network.NodeID])
	for n := range nodes {
		info, ok := s.nodes.Node(n)
		if ok && info.NetworkType == networkType {
			out.Add(n)
		}
	}
	return out
}

func (s *Session) lookup(ref network.EdgeRef) *network.Edge {
	e, err := s.index.Edge(ref)
	if err != nil {
		return nil
	}
	return e
}

// Diagnose checks the currently selected conduits
func (s *Session) Diagnose(ctx context.Context) (*diagnostics.Report, error) {
	ctx, span := s.spans.Start(ctx, "session.diagnose")
	defer span.End()

	conduits, err := network.SelectedOf(ctx, s.selected.Conduits)
	if err != nil {
		return nil, s.spanError(span, "diagnose", network.NewSourceError("selected", "conduit", err))
	}
	report, err := s.checker.Run(conduits)
	if err != nil {
		return nil, s.spanError(span, "diagnose", err)
	}
	span.SetAttributes(
		attribute.Int("inversions", len(report.Inversions)),
		attribute.Int("reductions", len(report.Reductions)),
	)
	return report, nil
}

// Reset clears every selection layer and the recorded state
func (s *Session) Reset(ctx context.Context) error {
	if err := s.selected.ClearAll(ctx); err != nil {
		return s.fail(ctx, "reset", err)
	}
	s.mu.Lock()
	s.start, s.direction, s.filters = "", trace.Upstream, trace.Filters{}
	s.lastNodes = make(network.Set[network.NodeID])
	s.visits = nil
	s.designated = ""
	s.note = ""
	s.mu.Unlock()

	s.logger.Info("session reset")
	s.emit(events.Event{Kind: events.KindReset})
	return nil
}

// Visits returns the visits in the order they were made
func (s *Session) Visits() []network.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]network.Visit(nil), s.visits...)
}

// SetNote attaches a free-text note saved with the snapshot
func (s *Session) SetNote(note string) {
	s.mu.Lock()
	s.note = note
	s.mu.Unlock()
}

// emit stamps e with the session id and time and publishes it
func (s *Session) emit(e events.Event) {
	if s.events == nil {
		return
	}
	e.Session = s.ID()
	e.At = s.now().UTC()
	s.events.Publish(e)
}

func (s *Session) recordReplace() {
	for _, c := range network.Collections {
		if s.selected.Edges(c) != nil {
			s.metrics.RecordSelectionOperation(c.String(), "replace")
		}
	}
	s.metrics.RecordSelectionOperation("liaison", "replace")
	s.metrics.RecordSelectionOperation("entity", "replace")
}

func (s *Session) spanError(span oteltrace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if s.metrics != nil {
		s.metrics.RecordError(op)
	}
	s.logger.Error(op+" failed", logging.Operation(op), logging.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Session) fail(ctx context.Context, op string, err error) error {
	return s.spanError(oteltrace.SpanFromContext(ctx), op, err)
}
