package events

import "sync"

// Topics the core publishes on. Dashboard projections subscribe to row
// changes; the identity module publishes auth changes so consumers
// re-resolve instead of polling.
const (
	TopicAuthChanged       = "auth.changed"
	TopicOrdersChanged     = "orders.changed"
	TopicDeliveriesChanged = "deliveries.changed"
)

// Event is a row-change or auth-change notification. Delivery is
// at-least-once from the subscriber's point of view: consumers must
// tolerate duplicates and re-read authoritative state on receipt.
type Event struct {
	Topic string
	// Key identifies the affected row or principal (order id, user id, ...).
	Key string
}

// Bus is a small in-process publish/subscribe fan-out. Publish never
// blocks: a subscriber that falls behind misses events, which is fine
// because events carry no state, only an invitation to re-read.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers for one topic. The returned cancel func must be
// called when the consumer goes away; the channel is closed by it.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[topic][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[topic][id]; ok {
			delete(b.subs[topic], id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber of its topic.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block a mutation path
		}
	}
}
