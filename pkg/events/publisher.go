package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dd0wney/sewertrace/pkg/logging"
)

// TopicPrefix starts every message; the event kind and a colon follow it
const TopicPrefix = "sewertrace:"

// Publisher sends events to a collector over a PUB socket
type Publisher struct {
	socket    PubSocket
	addr      string
	stream    chan Event
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex
	logger    logging.Logger
}

// PublisherConfig configures the publisher
type PublisherConfig struct {
	Address    string
	BufferSize int
	Logger     logging.Logger
}

// NewPublisher creates a publisher; Start connects it
func NewPublisher(factory SocketFactory, config PublisherConfig) (*Publisher, error) {
	socket, err := factory.NewPubSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = 256
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Publisher{
		socket: socket,
		addr:   config.Address,
		stream: make(chan Event, bufSize),
		stopCh: make(chan struct{}),
		logger: logger.With(logging.Component("events"), logging.String("addr", config.Address)),
	}, nil
}

// Start connects to the collector and begins publishing
func (p *Publisher) Start() error {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return fmt.Errorf("event publisher already running")
	}

	if err := p.socket.Dial(p.addr); err != nil {
		p.socket.Close()
		return fmt.Errorf("failed to dial %s: %w", p.addr, err)
	}

	p.running = true
	p.wg.Add(1)
	go p.publishLoop()

	p.logger.Debug("event publisher started")
	return nil
}

// Stop sends the events already queued, then closes the socket
func (p *Publisher) Stop() error {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if !p.running {
		return nil
	}

	close(p.stopCh)
	p.running = false
	p.wg.Wait()

	if err := p.socket.Close(); err != nil {
		p.logger.Warn("failed to close event socket", logging.Error(err))
	}
	return nil
}

// Publish queues an event for sending. Once Stop has been called it always
// returns ErrPublisherStopped.
func (p *Publisher) Publish(e Event) error {
	select {
	case <-p.stopCh:
		return ErrPublisherStopped
	default:
	}
	select {
	case p.stream <- e:
		return nil
	case <-p.stopCh:
		return ErrPublisherStopped
	}
}

// Forward publishes every event of sub until the subscription ends
func (p *Publisher) Forward(sub *Subscription) {
	for e := range sub.Channel() {
		if err := p.Publish(e); err != nil {
			return
		}
	}
}

func (p *Publisher) publishLoop() {
	defer p.wg.Done()

	for {
		select {
		case e := <-p.stream:
			p.send(e)
		case <-p.stopCh:
			for {
				select {
				case e := <-p.stream:
					p.send(e)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(e Event) {
	msg, err := Encode(e)
	if err != nil {
		p.logger.Error("failed to encode event", logging.Error(err))
		return
	}
	if err := p.socket.Send(msg); err != nil {
		p.logger.Warn("failed to publish event", logging.String("kind", string(e.Kind)), logging.Error(err))
	}
}

// Encode frames e as prefix, kind, colon, then the JSON body
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, len(TopicPrefix)+len(e.Kind)+1+len(data))
	msg = append(msg, TopicPrefix...)
	msg = append(msg, e.Kind...)
	msg = append(msg, ':')
	return append(msg, data...), nil
}
