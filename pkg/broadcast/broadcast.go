// Package broadcast provides per-topic fan-out of events to zero or more
// live subscribers. Publishing never blocks: each subscriber owns a bounded
// buffer, and when a slow subscriber's buffer fills, the oldest buffered
// event is dropped to make room for the newest. Subscribers that keep up
// receive every event in publish order.
package broadcast

import "sync"

// DefaultBuffer is the per-subscriber channel capacity used when New is
// given a non-positive buffer size.
const DefaultBuffer = 256

// Broadcaster fans events out to subscribers grouped by topic.
// Safe for concurrent use across topics and subscribers.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	topics map[string][]chan T
	buffer int
}

// New creates a Broadcaster whose subscribers buffer up to buffer events.
func New[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[T]{
		topics: make(map[string][]chan T),
		buffer: buffer,
	}
}

// Subscribe registers a listener on the topic. The returned cancel function
// unregisters the listener and closes its channel; it is safe to call more
// than once. A subscriber joining late only misses events published before
// the join, never receives them out of order.
func (b *Broadcaster[T]) Subscribe(topic string) (<-chan T, func()) {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], ch)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			removed := b.remove(topic, ch)
			b.mu.Unlock()

			// Close only if still registered. Close(topic) closes every
			// channel it removes, so a cancel arriving afterwards must not
			// close a second time.
			if removed {
				close(ch)
			}
		})
	}

	return ch, cancel
}

// Publish delivers the event to every current subscriber of the topic.
// Delivery to each subscriber is ordered; when a subscriber's buffer is
// full, the oldest buffered event is discarded.
func (b *Broadcaster[T]) Publish(topic string, event T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
			// Buffer full: drop the oldest event, then retry once. The
			// second send can only fail if the subscriber drained and
			// refilled concurrently, which a buffered receiver cannot do
			// while we hold the lock.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Close removes the topic and closes every subscriber channel, signaling
// that no further events will be published.
func (b *Broadcaster[T]) Close(topic string) {
	b.mu.Lock()
	subs := b.topics[topic]
	delete(b.topics, topic)
	b.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Subscribers reports the current listener count for a topic.
func (b *Broadcaster[T]) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *Broadcaster[T]) remove(topic string, target chan T) bool {
	subs := b.topics[topic]
	for i, ch := range subs {
		if ch == target {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}
