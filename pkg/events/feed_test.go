package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSocket struct {
	mu       sync.Mutex
	sent     [][]byte
	dialed   string
	listened string
	topics   []string
	inbox    chan []byte
	closed   bool
}

func newMockSocket() *mockSocket {
	return &mockSocket{inbox: make(chan []byte, 16)}
}

func (m *mockSocket) Send(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, append([]byte(nil), b...))
	return nil
}

func (m *mockSocket) Recv() ([]byte, error) {
	select {
	case b := <-m.inbox:
		return b, nil
	case <-time.After(10 * time.Millisecond):
		return nil, errors.New("timeout")
	}
}

func (m *mockSocket) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockSocket) SetRecvDeadline(time.Duration) error { return nil }

func (m *mockSocket) Dial(addr string) error {
	m.dialed = addr
	return nil
}

func (m *mockSocket) Listen(addr string) error {
	m.listened = addr
	return nil
}

func (m *mockSocket) Subscribe(topic []byte) error {
	m.topics = append(m.topics, string(topic))
	return nil
}

func (m *mockSocket) messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

type mockFactory struct{ sock *mockSocket }

func (f mockFactory) NewPubSocket() (PubSocket, error) { return f.sock, nil }
func (f mockFactory) NewSubSocket() (SubSocket, error) { return f.sock, nil }

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	e := Event{Kind: KindVisit, Session: "s1", Node: "R11", Pollution: true, Removed: 3, At: at}

	msg, err := Encode(e)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(msg), "sewertrace:visit:{"), "message = %s", msg)

	got, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestDecode_Malformed(t *testing.T) {
	for name, msg := range map[string]string{
		"no prefix":     `visit:{"kind":"visit"}`,
		"no kind":       `sewertrace:{}`,
		"bad json":      `sewertrace:visit:{`,
		"kind mismatch": `sewertrace:trace:{"kind":"visit"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(msg))
			assert.Error(t, err)
		})
	}
}

func TestPublisher_StopFlushesQueue(t *testing.T) {
	sock := newMockSocket()
	p, err := NewPublisher(mockFactory{sock}, PublisherConfig{Address: "tcp://collector:7450"})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	assert.Equal(t, "tcp://collector:7450", sock.dialed)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(Event{Kind: KindTrace, Edges: i}))
	}
	require.NoError(t, p.Stop())

	msgs := sock.messages()
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		e, err := Decode(m)
		require.NoError(t, err)
		assert.Equal(t, i, e.Edges)
	}
	assert.True(t, sock.closed)
	assert.ErrorIs(t, p.Publish(Event{Kind: KindTrace}), ErrPublisherStopped)
}

func TestPublisher_PublishAfterStop(t *testing.T) {
	for i := 0; i < 200; i++ {
		sock := newMockSocket()
		p, err := NewPublisher(mockFactory{sock}, PublisherConfig{Address: "inproc://x"})
		require.NoError(t, err)
		require.NoError(t, p.Start())
		require.NoError(t, p.Stop())

		require.ErrorIs(t, p.Publish(Event{Kind: KindVisit}), ErrPublisherStopped, "run %d", i)
		require.Empty(t, sock.messages(), "run %d", i)
	}
}

func TestPublisher_ForwardsBus(t *testing.T) {
	sock := newMockSocket()
	p, err := NewPublisher(mockFactory{sock}, PublisherConfig{Address: "inproc://x"})
	require.NoError(t, err)
	require.NoError(t, p.Start())

	bus := NewBus()
	sub, err := bus.Subscribe(context.Background(), TopicAll)
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		p.Forward(sub)
		close(done)
	}()

	bus.Publish(Event{Kind: KindDesignate, Entity: "IND1"})
	bus.Shutdown()
	<-done
	require.NoError(t, p.Stop())

	msgs := sock.messages()
	require.Len(t, msgs, 1)
	e, err := Decode(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, KindDesignate, e.Kind)
}

func TestSubscriber_FiltersAndDecodes(t *testing.T) {
	sock := newMockSocket()
	s, err := NewSubscriber(mockFactory{sock}, SubscriberConfig{
		Address: "tcp://*:7450",
		Kinds:   []Kind{KindVisit, KindReset},
	})
	require.NoError(t, err)
	require.NoError(t, s.Listen())
	assert.Equal(t, "tcp://*:7450", sock.listened)
	assert.Equal(t, []string{"sewertrace:visit:", "sewertrace:reset:"}, sock.topics)

	good, _ := Encode(Event{Kind: KindVisit, Node: "B"})
	sock.inbox <- []byte("garbage")
	sock.inbox <- good

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Event, 1)
	go s.Run(ctx, func(e Event) {
		got <- e
		cancel()
	})

	select {
	case e := <-got:
		assert.Equal(t, KindVisit, e.Kind)
		assert.EqualValues(t, "B", e.Node)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestNNG_RoundTrip(t *testing.T) {
	addr := "inproc://sewertrace-" + uuid.NewString()
	factory := NewNNGSocketFactory()

	s, err := NewSubscriber(factory, SubscriberConfig{Address: addr, RecvTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, s.Listen())

	got := make(chan Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, func(e Event) { got <- e })

	p, err := NewPublisher(factory, PublisherConfig{Address: addr})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	// PUB/SUB drops messages until the pipe is attached, so keep publishing
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case e := <-got:
			assert.Equal(t, KindReload, e.Kind)
			return
		case <-tick.C:
			require.NoError(t, p.Publish(Event{Kind: KindReload, Edges: 7}))
		case <-deadline:
			t.Fatal("no event crossed the socket")
		}
	}
}
