package events

import (
	"errors"
	"io"
	"time"
)

var (
	ErrBusClosed        = errors.New("event bus closed")
	ErrPublisherStopped = errors.New("event publisher stopped")
)

// Socket is the part of a messaging socket the feed uses. It abstracts the
// nanomsg sockets so tests can substitute their own.
type Socket interface {
	io.Closer
	Send([]byte) error
	Recv() ([]byte, error)
	SetRecvDeadline(d time.Duration) error
}

// PubSocket is a PUB socket. It dials the collector rather than listening,
// so that short-lived commands can publish to a long-running follower.
type PubSocket interface {
	Socket
	Dial(addr string) error
}

// SubSocket is a SUB socket that listens for publishers
type SubSocket interface {
	Socket
	Listen(addr string) error
	Subscribe(topic []byte) error
}

// SocketFactory creates feed sockets
type SocketFactory interface {
	NewPubSocket() (PubSocket, error)
	NewSubSocket() (SubSocket, error)
}
