package network

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NodeID identifies a structure (manhole, junction, outfall) of the network.
// Nodes are never materialized: they only exist as keys of edge and liaison maps.
type NodeID string

// Sentinel spellings of the "unknown" node found in source data
var unknownSpellings = map[string]struct{}{
	"":        {},
	"INCONNU": {},
	"UNKNOWN": {},
}

// Endpoint is an optional node reference. The zero value is Unknown.
type Endpoint struct {
	id    NodeID
	known bool
}

// Unknown marks an undetermined, non-traversable edge end
var Unknown = Endpoint{}

// Known returns an endpoint referencing id
func Known(id NodeID) Endpoint {
	return Endpoint{id: id, known: true}
}

// ParseEndpoint converts a raw attribute value into an Endpoint.
// Sentinel spellings become Unknown; everything else is trimmed and kept.
func ParseEndpoint(raw string) Endpoint {
	v := strings.TrimSpace(raw)
	if _, ok := unknownSpellings[strings.ToUpper(v)]; ok {
		return Unknown
	}
	return Known(NodeID(v))
}

// Get returns the node id and whether the endpoint is known
func (e Endpoint) Get() (NodeID, bool) {
	return e.id, e.known
}

// IsKnown reports whether the endpoint references a real node
func (e Endpoint) IsKnown() bool {
	return e.known
}

func (e Endpoint) String() string {
	if !e.known {
		return "<unknown>"
	}
	return string(e.id)
}

// Collection tags the two edge collections that form one graph
type Collection int

const (
	// Conduit is the primary piped network
	Conduit Collection = iota
	// Channel is the optional secondary network (open channels, ditches)
	Channel
)

// Collections lists every edge collection in scan order
var Collections = []Collection{Conduit, Channel}

// String returns the string representation of a collection
func (c Collection) String() string {
	switch c {
	case Conduit:
		return "conduit"
	case Channel:
		return "channel"
	default:
		return "unknown"
	}
}

// ParseCollection converts a string to a Collection
func ParseCollection(s string) (Collection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conduit", "canal", "canalisation":
		return Conduit, nil
	case "channel", "fosse", "ditch":
		return Channel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, s)
	}
}

// EdgeID is unique within its collection only
type EdgeID int64

// EdgeRef is the global key of an edge
type EdgeRef struct {
	Collection Collection
	ID         EdgeID
}

func (r EdgeRef) String() string {
	return fmt.Sprintf("%s:%d", r.Collection, r.ID)
}

// Code is an attribute code (category, function, flow type). Empty means absent.
type Code string

// Flow type codes
const (
	FlowStormwater Code = "01"
	FlowWastewater Code = "02"
	FlowCombined   Code = "03"
)

// ParseCode trims a raw attribute value
func ParseCode(raw string) Code {
	return Code(strings.TrimSpace(raw))
}

// IsSet reports whether the code carries a value
func (c Code) IsSet() bool {
	return c != ""
}

// Edge is a conduit or channel segment
type Edge struct {
	Collection Collection
	ID         EdgeID
	Start      Endpoint
	End        Endpoint
	Category   Code
	Function   Code
	FlowType   Code
	Length     float64 // resolved at ingestion: explicit length, else geometry length
	Diameter   int     // millimetres, 0 when unknown
	Inversion  Code    // inversion status code, diagnostics only
}

// Ref returns the global key of the edge
func (e *Edge) Ref() EdgeRef {
	return EdgeRef{Collection: e.Collection, ID: e.ID}
}

// LiaisonID identifies a liaison record
type LiaisonID int64

// EntityID identifies an external entity (industrial discharger)
type EntityID string

// Liaison links a node to an external entity
type Liaison struct {
	ID     LiaisonID
	Node   NodeID
	Entity EntityID
}

// Entity is an external facility. Attributes are opaque to the engine.
type Entity struct {
	ID         EntityID
	Attributes map[string]string
}

// NodeInfo carries the structure attributes used by diagnostics
type NodeInfo struct {
	ID          NodeID
	NetworkType Code
}

// Visit is one operator field visit
type Visit struct {
	Node      NodeID    `json:"node" yaml:"node"`
	Pollution bool      `json:"pollution" yaml:"pollution"`
	At        time.Time `json:"at" yaml:"at"`
}

// BranchKind is the kind of element incident to a visited node
type BranchKind int

const (
	BranchConduit BranchKind = iota
	BranchChannel
	BranchLiaison
)

// String returns the string representation of a branch kind
func (k BranchKind) String() string {
	switch k {
	case BranchConduit:
		return "conduit"
	case BranchChannel:
		return "channel"
	case BranchLiaison:
		return "liaison"
	default:
		return "unknown"
	}
}

// BranchKindOf maps an edge collection to its branch kind
func BranchKindOf(c Collection) BranchKind {
	if c == Channel {
		return BranchChannel
	}
	return BranchConduit
}

// BranchID identifies a branch. Ids are unique only together with their kind.
type BranchID struct {
	Kind BranchKind
	ID   int64
}

func (b BranchID) String() string {
	return fmt.Sprintf("%s:%d", b.Kind, b.ID)
}

// ParseBranchID parses "kind:id"
func ParseBranchID(s string) (BranchID, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return BranchID{}, fmt.Errorf("%w: %q", ErrInvalidBranch, s)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return BranchID{}, fmt.Errorf("%w: %q", ErrInvalidBranch, s)
	}
	switch strings.ToLower(kind) {
	case "conduit":
		return BranchID{Kind: BranchConduit, ID: n}, nil
	case "channel":
		return BranchID{Kind: BranchChannel, ID: n}, nil
	case "liaison":
		return BranchID{Kind: BranchLiaison, ID: n}, nil
	default:
		return BranchID{}, fmt.Errorf("%w: %q", ErrInvalidBranch, s)
	}
}

// Branch is an upstream edge or liaison evaluated at a visited node
type Branch struct {
	Kind     BranchKind
	ID       int64
	Upstream Endpoint // far node of a conduit/channel branch
	Entity   EntityID // linked entity of a liaison branch
}

// BranchID returns the identifier of the branch
func (b Branch) BranchID() BranchID {
	return BranchID{Kind: b.Kind, ID: b.ID}
}

// EdgeRef returns the edge behind a conduit/channel branch
func (b Branch) EdgeRef() (EdgeRef, bool) {
	switch b.Kind {
	case BranchConduit:
		return EdgeRef{Collection: Conduit, ID: EdgeID(b.ID)}, true
	case BranchChannel:
		return EdgeRef{Collection: Channel, ID: EdgeID(b.ID)}, true
	default:
		return EdgeRef{}, false
	}
}
