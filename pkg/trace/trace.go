package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/topology"
	"github.com/dd0wney/sewertrace/pkg/validation"
)

// ErrInvalidFilter is returned when a filter code is malformed
var ErrInvalidFilter = errors.New("invalid trace filter")

// Direction is the walk direction relative to flow
type Direction int

const (
	// Upstream walks incoming edges toward their start node
	Upstream Direction = iota
	// Downstream walks outgoing edges toward their end node
	Downstream
)

// String returns the string representation of a direction
func (d Direction) String() string {
	switch d {
	case Upstream:
		return "upstream"
	case Downstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// ParseDirection converts a string to a Direction
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upstream", "up", "amont":
		return Upstream, nil
	case "downstream", "down", "aval":
		return Downstream, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// Filters restricts a full trace by edge attributes. An empty code matches
// everything, and an edge lacking the attribute is never blocked.
type Filters struct {
	Category network.Code `json:"category,omitempty" yaml:"category,omitempty"`
	Function network.Code `json:"function,omitempty" yaml:"function,omitempty"`
}

// Validate rejects malformed filter codes
func (f Filters) Validate() error {
	if err := validation.ValidateCode("Category", string(f.Category)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if err := validation.ValidateCode("Function", string(f.Function)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return nil
}

// IsZero reports whether the filters match every edge
func (f Filters) IsZero() bool {
	return !f.Category.IsSet() && !f.Function.IsSet()
}

// accepts applies the filters to an edge
func (f Filters) accepts(e *network.Edge) bool {
	if f.Category.IsSet() && e.Category.IsSet() && e.Category != f.Category {
		return false
	}
	if f.Function.IsSet() && e.Function.IsSet() && e.Function != f.Function {
		return false
	}
	return true
}

// Tracer walks the network through a topology index
type Tracer struct {
	index *topology.Index
}

// NewTracer creates a tracer over an index
func NewTracer(index *topology.Index) *Tracer {
	return &Tracer{index: index}
}

// Trace walks the full topology from start, applying attribute filters.
// An unknown or empty start yields an empty result.
func (t *Tracer) Trace(start network.NodeID, dir Direction, f Filters) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return t.walk(start, dir, func(adj topology.Adjacent) bool {
		return f.accepts(adj.Edge)
	})
}

// TraceWithin walks only edges present in allowed. No attribute filters apply.
func (t *Tracer) TraceWithin(start network.NodeID, dir Direction, allowed network.EdgeSets) (*Result, error) {
	return t.walk(start, dir, func(adj topology.Adjacent) bool {
		return allowed.Has(adj.Ref)
	})
}

// walk is an explicit-stack depth-first search over the adjacency maps.
// Each node is expanded at most once; each edge is recorded at most once.
func (t *Tracer) walk(start network.NodeID, dir Direction, follow func(topology.Adjacent) bool) (*Result, error) {
	result := newResult(start)
	if !network.ParseEndpoint(string(start)).IsKnown() {
		return result, nil
	}

	var adjacency map[network.NodeID][]topology.Adjacent
	var err error
	switch dir {
	case Upstream:
		adjacency, err = t.index.Incoming()
	case Downstream:
		adjacency, err = t.index.Outgoing()
	default:
		return nil, fmt.Errorf("unknown direction %d", int(dir))
	}
	if err != nil {
		return nil, fmt.Errorf("trace from %s: %w", start, err)
	}

	result.Nodes.Add(start)
	stack := []network.NodeID{start}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, adj := range adjacency[node] {
			if !follow(adj) {
				continue
			}
			result.record(adj.Edge)

			far := adj.Edge.Start
			if dir == Downstream {
				far = adj.Edge.End
			}
			next, ok := far.Get()
			if !ok || result.Nodes.Has(next) {
				continue
			}
			result.Nodes.Add(next)
			stack = append(stack, next)
		}
	}

	return result, nil
}
