// Package events provides the in-process publish/subscribe bus that carries
// webhook notifications to connected dashboard clients.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Callback receives every envelope published on a subscribed topic. It runs
// synchronously on the publisher's goroutine and must not mutate the envelope.
type Callback func(Envelope)

// Subscription identifies one registered callback on one topic.
type Subscription struct {
	id uint64
	fn Callback
}

// Bus fan-outs envelopes to subscribers, keyed by topic.
//
// Dispatch is synchronous: Publish invokes every callback registered on the
// topic, in subscription order, before returning. Fan-out holds the read lock
// and Unsubscribe takes the write lock, so once Unsubscribe returns no further
// delivery to that subscription is possible, even with a publish in flight on
// another goroutine. Nothing is buffered or replayed; a publish with no
// subscribers is discarded.
type Bus struct {
	log    zerolog.Logger
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]*Subscription
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log, topics: make(map[string][]*Subscription)}
}

// Subscribe registers fn to be invoked once per future publish on topic.
// Unknown topics are created implicitly.
func (b *Bus) Subscribe(topic string, fn Callback) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, fn: fn}
	b.topics[topic] = append(b.topics[topic], sub)
	return sub
}

// Unsubscribe removes sub from topic. Repeated or unknown subscriptions are a
// no-op, never an error.
func (b *Bus) Unsubscribe(topic string, sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == sub.id {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers evt to every current subscriber of topic, in subscription
// order. A panicking subscriber is logged and skipped; it never reaches the
// remaining subscribers or the publisher.
func (b *Bus) Publish(topic string, evt Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.topics[topic] {
		b.deliver(sub, evt)
	}
}

// Subscribers reports the number of active subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) deliver(sub *Subscription, evt Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn().Interface("panic", r).Str("type", evt.Type).Msg("subscriber failed, skipping")
		}
	}()
	sub.fn(evt)
}
