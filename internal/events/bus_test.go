package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

func TestBus_FanOutCompleteness(t *testing.T) {
	bus := newTestBus()

	const subscribers = 3
	const published = 5

	received := make([][]Envelope, subscribers)
	for i := 0; i < subscribers; i++ {
		i := i
		bus.Subscribe(TopicFront, func(evt Envelope) {
			received[i] = append(received[i], evt)
		})
	}

	for i := 0; i < published; i++ {
		bus.Publish(TopicFront, Envelope{Type: fmt.Sprintf("event.%d", i)})
	}

	for i, got := range received {
		if len(got) != published {
			t.Fatalf("subscriber %d received %d envelopes, want %d", i, len(got), published)
		}
		for j, evt := range got {
			want := fmt.Sprintf("event.%d", j)
			if evt.Type != want {
				t.Errorf("subscriber %d envelope %d type = %q, want %q", i, j, evt.Type, want)
			}
		}
	}
}

func TestBus_NoReplay(t *testing.T) {
	bus := newTestBus()

	bus.Publish(TopicFront, Envelope{Type: "before"})

	var got []Envelope
	bus.Subscribe(TopicFront, func(evt Envelope) {
		got = append(got, evt)
	})

	bus.Publish(TopicFront, Envelope{Type: "after"})

	if len(got) != 1 || got[0].Type != "after" {
		t.Fatalf("got %v, want exactly the post-subscribe envelope", got)
	}
}

func TestBus_UnsubscribeIsTerminal(t *testing.T) {
	bus := newTestBus()

	var count int
	sub := bus.Subscribe(TopicFront, func(Envelope) { count++ })

	bus.Publish(TopicFront, Envelope{Type: "one"})
	bus.Unsubscribe(TopicFront, sub)
	bus.Publish(TopicFront, Envelope{Type: "two"})

	if count != 1 {
		t.Fatalf("received %d envelopes, want 1", count)
	}
	if n := bus.Subscribers(TopicFront); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}

	// Repeated and unknown unsubscribes are no-ops.
	bus.Unsubscribe(TopicFront, sub)
	bus.Unsubscribe("other", sub)
	bus.Unsubscribe(TopicFront, nil)
}

func TestBus_SubscriberIsolation(t *testing.T) {
	bus := newTestBus()

	var before, after int
	bus.Subscribe(TopicFront, func(Envelope) { before++ })
	bus.Subscribe(TopicFront, func(Envelope) { panic("subscriber blew up") })
	bus.Subscribe(TopicFront, func(Envelope) { after++ })

	bus.Publish(TopicFront, Envelope{Type: "boom"})
	bus.Publish(TopicFront, Envelope{Type: "boom"})

	if before != 2 || after != 2 {
		t.Fatalf("before=%d after=%d, want both 2", before, after)
	}
}

func TestBus_TopicsAreIndependent(t *testing.T) {
	bus := newTestBus()

	var front, other int
	bus.Subscribe(TopicFront, func(Envelope) { front++ })
	bus.Subscribe("other", func(Envelope) { other++ })

	bus.Publish(TopicFront, Envelope{Type: "x"})
	bus.Publish("nobody-listens", Envelope{Type: "x"})

	if front != 1 || other != 0 {
		t.Fatalf("front=%d other=%d, want 1 and 0", front, other)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var received atomic.Int64
	bus.Subscribe(TopicFront, func(Envelope) {
		received.Add(1)
	})

	const publishers = 8
	const perPublisher = 100

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				bus.Publish(TopicFront, Envelope{Type: "load"})
			}
		}()
	}
	wg.Wait()

	if got := received.Load(); got != publishers*perPublisher {
		t.Fatalf("received %d envelopes, want %d", got, publishers*perPublisher)
	}
}

func TestBus_UnsubscribeBarriersInFlightPublish(t *testing.T) {
	bus := newTestBus()

	var closed atomic.Bool
	started := make(chan struct{})

	sub := bus.Subscribe(TopicFront, func(Envelope) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		if closed.Load() {
			t.Error("callback observed state released by teardown")
		}
	})

	go bus.Publish(TopicFront, Envelope{Type: "slow"})

	// Unsubscribe must not return while the delivery is still running.
	<-started
	bus.Unsubscribe(TopicFront, sub)
	closed.Store(true)

	bus.Publish(TopicFront, Envelope{Type: "late"})
}
