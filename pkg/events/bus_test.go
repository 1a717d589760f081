package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBus_KindAndAllTopics(t *testing.T) {
	bus := NewBus()
	defer bus.Shutdown()

	ctx := context.Background()
	visits, err := bus.Subscribe(ctx, string(KindVisit))
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	all, _ := bus.Subscribe(ctx, TopicAll)
	defer visits.Unsubscribe()
	defer all.Unsubscribe()

	bus.Publish(Event{Kind: KindTrace, Node: "C"})
	bus.Publish(Event{Kind: KindVisit, Node: "B", Pollution: true})

	for _, want := range []Kind{KindTrace, KindVisit} {
		select {
		case e := <-all.Channel():
			if e.Kind != want {
				t.Errorf("all: got %s, want %s", e.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("all: timeout waiting for %s", want)
		}
	}

	select {
	case e := <-visits.Channel():
		if e.Kind != KindVisit || e.Node != "B" || !e.Pollution {
			t.Errorf("visits: got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("visits: timeout")
	}
	select {
	case e := <-visits.Channel():
		t.Errorf("visits received a %s event", e.Kind)
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Shutdown()

	sub, _ := bus.Subscribe(context.Background(), TopicAll)
	if n := bus.SubscriberCount(TopicAll); n != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n)
	}

	sub.Unsubscribe()
	if n := bus.SubscriberCount(TopicAll); n != 0 {
		t.Errorf("Expected 0 subscribers after unsubscribe, got %d", n)
	}

	bus.Publish(Event{Kind: KindReset})
	if _, ok := <-sub.Channel(); ok {
		t.Error("Received event after unsubscribe")
	}
}

func TestBus_ContextCancellation(t *testing.T) {
	bus := NewBus()
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := bus.Subscribe(ctx, TopicAll)

	done := make(chan bool, 1)
	go func() {
		for range sub.Channel() {
		}
		done <- true
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscription channel did not close on context cancellation")
	}
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub, _ := bus.Subscribe(context.Background(), TopicAll)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(Event{Kind: KindVisit, Edges: j})
			}
		}()
		go func(s *Subscription) {
			defer wg.Done()
			s.Unsubscribe()
		}(sub)
	}
	wg.Wait()
}

func TestBus_Shutdown(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe(context.Background(), TopicAll)

	bus.Shutdown()
	if _, ok := <-sub.Channel(); ok {
		t.Error("Subscription channel should be closed after shutdown")
	}
	if _, err := bus.Subscribe(context.Background(), TopicAll); err != ErrBusClosed {
		t.Errorf("Subscribe after shutdown = %v, want ErrBusClosed", err)
	}
	bus.Publish(Event{Kind: KindReset})
}
