package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/grovetools/claudemon/pkg/models"
)

// Publisher receives events destined for UI listeners.
type Publisher interface {
	Publish(ev models.BridgeEvent)
}

// DefaultEventBuffer is the per-subscriber queue length.
const DefaultEventBuffer = 256

// Subscription is one listener's event queue.
type Subscription struct {
	ID string
	C  <-chan models.BridgeEvent

	ch chan models.BridgeEvent
}

// Broadcaster fans events out to subscribers. Each subscriber has a bounded
// queue; when it is full the oldest queued event is dropped so a slow
// listener never stalls the stdout reader. Events reach each subscriber in
// publish order.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	capacity int
	closed   bool
	dropped  atomic.Uint64
}

// NewBroadcaster creates a Broadcaster with the given per-subscriber capacity.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity < 1 {
		capacity = DefaultEventBuffer
	}
	return &Broadcaster{
		subs:     make(map[string]*Subscription),
		capacity: capacity,
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan models.BridgeEvent, b.capacity)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; ok {
		delete(b.subs, sub.ID)
		close(sub.ch)
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Broadcaster) Publish(ev models.BridgeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest and retry once.
		select {
		case <-sub.ch:
			b.dropped.Add(1)
		default:
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many events were discarded because of full queues.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone. Later subscriptions receive a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.closed = true
}
