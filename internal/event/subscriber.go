package event

import "sync"

// Subscription delivers matching payloads on a bounded channel.
//
// Publishing never blocks on a slow reader: when the channel is full the
// payload is dropped and counted.
type Subscription[T any] struct {
	bus *Bus[T]
	id  uint64
	ch  chan T

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Channel registers a channel-backed subscription with the given capacity.
func (b *Bus[T]) Channel(pattern string, capacity int) *Subscription[T] {
	if capacity <= 0 {
		capacity = 64
	}
	s := &Subscription[T]{bus: b, ch: make(chan T, capacity)}
	s.id = b.Subscribe(pattern, func(_ string, payload T) {
		s.deliver(payload)
	})
	if s.id == 0 {
		s.closed = true
		close(s.ch)
	}
	return s
}

// C returns the receive side of the subscription.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many payloads were discarded because the channel was full.
func (s *Subscription[T]) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Drain returns everything currently buffered without blocking.
func (s *Subscription[T]) Drain() []T {
	var out []T
	for {
		select {
		case v, ok := <-s.ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.bus.Unsubscribe(s.id)
	close(s.ch)
}

func (s *Subscription[T]) deliver(payload T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- payload:
	default:
		s.dropped++
	}
}
