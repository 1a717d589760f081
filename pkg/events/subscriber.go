package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"

	"github.com/dd0wney/sewertrace/pkg/logging"
)

// Handler receives decoded events
type Handler func(Event)

// Subscriber listens for publishers and decodes their events
type Subscriber struct {
	socket      SubSocket
	addr        string
	kinds       []Kind
	recvTimeout time.Duration
	logger      logging.Logger
}

// SubscriberConfig configures the subscriber. An empty Kinds receives every
// event.
type SubscriberConfig struct {
	Address     string
	Kinds       []Kind
	RecvTimeout time.Duration
	Logger      logging.Logger
}

// NewSubscriber creates a subscriber; Run listens and delivers events
func NewSubscriber(factory SocketFactory, config SubscriberConfig) (*Subscriber, error) {
	socket, err := factory.NewSubSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	timeout := config.RecvTimeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Subscriber{
		socket:      socket,
		addr:        config.Address,
		kinds:       config.Kinds,
		recvTimeout: timeout,
		logger:      logger.With(logging.Component("events"), logging.String("addr", config.Address)),
	}, nil
}

// Listen binds the socket and sets up topic filters. Call it before Run.
func (s *Subscriber) Listen() error {
	if err := s.socket.Listen(s.addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	topics := [][]byte{[]byte(TopicPrefix)}
	if len(s.kinds) > 0 {
		topics = topics[:0]
		for _, k := range s.kinds {
			topics = append(topics, []byte(TopicPrefix+string(k)+":"))
		}
	}
	for _, t := range topics {
		if err := s.socket.Subscribe(t); err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
	}
	return s.socket.SetRecvDeadline(s.recvTimeout)
}

// Run delivers events to h until ctx is done, then closes the socket
func (s *Subscriber) Run(ctx context.Context, h Handler) error {
	defer s.socket.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := s.socket.Recv()
		if errors.Is(err, mangos.ErrClosed) {
			return err
		}
		if err != nil {
			continue // timeout
		}

		e, err := Decode(msg)
		if err != nil {
			s.logger.Warn("dropping malformed event", logging.Error(err))
			continue
		}
		h(e)
	}
}

// Decode parses a message produced by Encode
func Decode(msg []byte) (Event, error) {
	if !bytes.HasPrefix(msg, []byte(TopicPrefix)) {
		return Event{}, errors.New("missing topic prefix")
	}
	rest := msg[len(TopicPrefix):]
	i := bytes.IndexByte(rest, ':')
	if i < 0 {
		return Event{}, errors.New("missing event kind")
	}

	var e Event
	if err := json.Unmarshal(rest[i+1:], &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if string(e.Kind) != string(rest[:i]) {
		return Event{}, fmt.Errorf("topic %q does not match kind %q", rest[:i], e.Kind)
	}
	return e, nil
}
