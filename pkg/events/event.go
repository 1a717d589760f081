// Package events carries selection changes to the map backend and other
// observers: an in-process bus, plus a publisher and subscriber that move
// events over nanomsg PUB/SUB sockets.
package events

import (
	"time"

	"github.com/dd0wney/sewertrace/pkg/network"
)

// Kind names what changed. It is also the topic events are published under.
type Kind string

const (
	KindTrace     Kind = "trace"
	KindVisit     Kind = "visit"
	KindDesignate Kind = "designate"
	KindResolve   Kind = "resolve"
	KindReset     Kind = "reset"
	KindRestore   Kind = "restore"
	KindReload    Kind = "reload"
)

// TopicAll receives every event regardless of kind
const TopicAll = "*"

// Event describes one change to a session's selection. Entities holds the
// entities now selected, except for visits where it holds those removed.
type Event struct {
	Kind      Kind               `json:"kind"`
	Session   string             `json:"session"`
	Node      network.NodeID     `json:"node,omitempty"`
	Direction string             `json:"direction,omitempty"`
	Pollution bool               `json:"pollution,omitempty"`
	Entity    network.EntityID   `json:"entity,omitempty"`
	Edges     int                `json:"edges"`
	Kept      int                `json:"kept,omitempty"`
	Removed   int                `json:"removed,omitempty"`
	Entities  []network.EntityID `json:"entities,omitempty"`
	At        time.Time          `json:"at"`
}
