// Package event provides a thread-safe publish-subscribe bus.
//
// Topics follow a dot-notation hierarchy:
//   - terminal.created, terminal.output, terminal.closed
//   - session.created, session.ended, session.bookmark
//
// A subscription pattern is either an exact topic, a prefix wildcard
// ending in ".*" (e.g. "terminal.*"), or "*" for everything.
package event

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Handler receives a published payload together with its topic.
type Handler[T any] func(topic string, payload T)

// Bus is a typed publish-subscribe bus.
type Bus[T any] struct {
	mu sync.RWMutex

	// Subscriptions in registration order.
	subs []*subscription[T]

	nextID uint64
	closed atomic.Bool

	// Panics recovered from handlers.
	panics atomic.Int64
}

type subscription[T any] struct {
	id      uint64
	pattern string
	handler Handler[T]
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers handler for topics matching pattern.
// Returns an id for Unsubscribe, or 0 if the bus is closed.
func (b *Bus[T]) Subscribe(pattern string, handler Handler[T]) uint64 {
	if b.closed.Load() || handler == nil {
		return 0
	}

	id := atomic.AddUint64(&b.nextID, 1)

	b.mu.Lock()
	b.subs = append(b.subs, &subscription[T]{id: id, pattern: pattern, handler: handler})
	b.mu.Unlock()

	return id
}

// Unsubscribe removes a subscription. Returns true if it existed.
func (b *Bus[T]) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers payload synchronously to every matching handler, in
// subscription order. A panicking handler does not stop delivery to others.
func (b *Bus[T]) Publish(topic string, payload T) {
	if b.closed.Load() {
		return
	}

	for _, h := range b.matching(topic) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.panics.Add(1)
				}
			}()
			h(topic, payload)
		}()
	}
}

// Close shuts the bus down. Later Subscribe and Publish calls are no-ops.
func (b *Bus[T]) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}

// Len returns the number of active subscriptions.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// RecoveredPanics returns how many handler panics have been swallowed.
func (b *Bus[T]) RecoveredPanics() int64 {
	return b.panics.Load()
}

func (b *Bus[T]) matching(topic string) []Handler[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var handlers []Handler[T]
	for _, s := range b.subs {
		if Match(s.pattern, topic) {
			handlers = append(handlers, s.handler)
		}
	}
	return handlers
}

// Match reports whether topic matches pattern.
func Match(pattern, topic string) bool {
	if pattern == "*" || pattern == topic {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(topic, prefix+".")
	}
	return false
}
