// Package bus implements the exact-type event dispatcher: publishers
// hand an event to Publish, the bus snapshots the subscriber set
// registered for that event's concrete Kind under a lock, then delivers
// outside the lock so subscription changes during delivery never
// deadlock (spec.md §4.1).
package bus

import (
	"sync"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// Subscriber is anything the bus can deliver events to and wait on. A
// *subscriber.Worker satisfies this directly.
type Subscriber interface {
	Receive(ev events.Event)
	WaitUntilIdle()
	Shutdown()
}

// Bus routes each published event to every subscriber registered for the
// event's exact concrete Kind. It has no goroutine of its own; Publish
// runs on the caller's goroutine up through enqueueing.
type Bus struct {
	mu          sync.Mutex
	subscribers [events.NumKinds][]Subscriber
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers sub for kind. Idempotent: subscribing the same
// (kind, sub) pair twice has no additional effect.
func (b *Bus) Subscribe(kind events.Kind, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.subscribers[kind] {
		if existing == sub {
			return
		}
	}
	b.subscribers[kind] = append(b.subscribers[kind], sub)
}

// Unsubscribe removes the (kind, sub) pair, if registered.
func (b *Bus) Unsubscribe(kind events.Kind, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[kind]
	for i, existing := range subs {
		if existing == sub {
			b.subscribers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish snapshots the subscriber set for ev.Kind() and delivers ev to
// each by calling Receive. Publish never fails; a subscriber's internal
// error handling is its own concern (spec.md §4.1 Failure semantics).
func (b *Bus) Publish(ev events.Event) {
	b.mu.Lock()
	snapshot := append([]Subscriber(nil), b.subscribers[ev.Kind()]...)
	b.mu.Unlock()

	for _, sub := range snapshot {
		sub.Receive(ev)
	}
}

// WaitUntilSystemIdle blocks until every currently registered subscriber
// reports an empty queue with nothing in flight. This is the barrier the
// orchestrator uses between timestamp groups during replay.
func (b *Bus) WaitUntilSystemIdle() {
	for _, sub := range b.allSubscribers() {
		sub.WaitUntilIdle()
	}
}

// Shutdown signals every registered subscriber to drain and stop, and
// waits for each to acknowledge.
func (b *Bus) Shutdown() {
	for _, sub := range b.allSubscribers() {
		sub.Shutdown()
	}
}

// allSubscribers returns the de-duplicated set of subscribers registered
// across all kinds, snapshotted under the lock.
func (b *Bus) allSubscribers() []Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[Subscriber]struct{})
	var all []Subscriber
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			all = append(all, sub)
		}
	}
	return all
}
