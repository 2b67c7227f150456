// Package bus implements the process-local typed event bus. Stores publish
// collection-changed events on it; the sync engine, the notification
// generator and presentation observers subscribe. It never crosses process
// boundaries; cross-client signals travel over the remote change feed.
package bus

import (
	"sync"
	"time"
)

// Topic identifies one collection-changed channel.
type Topic string

// Local-origin topics, one per collection.
const (
	TopicInventory      Topic = "inventory-updated"
	TopicOrders         Topic = "orders-updated"
	TopicPreparedOrders Topic = "prepared-orders-updated"
	TopicNotifications  Topic = "notifications-updated"
	TopicExpenses       Topic = "expenses-updated"
)

// Origin distinguishes local mutations from changes applied by the sync
// engine out of the remote store.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// LocalTopic returns the local-origin topic for a collection name.
func LocalTopic(collection string) Topic {
	return Topic(collection + "-updated")
}

// RemoteTopic returns the remote-origin variant for a collection name.
func RemoteTopic(collection string) Topic {
	return Topic("remote-" + collection + "-updated")
}

// Event announces that a collection changed.
type Event struct {
	Topic      Topic
	Collection string
	Origin     Origin
	// IDs lists upserted entities, Removed lists deleted ones. Both empty
	// means the whole collection may have changed (bulk replace, reload).
	IDs     []string
	Removed []string
	At      time.Time
}

// subQueueSize bounds each subscriber's buffer. Publishers never block; on
// overflow the oldest event is dropped, which is safe because observers
// re-read the store rather than replaying events.
const subQueueSize = 64

// Subscription is a scoped registration on the bus. Close releases it
// deterministically; it is safe to call more than once.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	topics map[Topic]struct{}
	bus    *Bus
	once   sync.Once
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

// Bus is an in-process publish/subscribe channel.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in the given topics. No topics means all
// topics. The caller must Close the subscription when done.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, subQueueSize),
		topics: make(map[Topic]struct{}, len(topics)),
		bus:    b,
	}
	sub.C = sub.ch
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish fans the event out to matching subscribers without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if len(sub.topics) > 0 {
			if _, ok := sub.topics[evt.Topic]; !ok {
				continue
			}
		}
		for {
			select {
			case sub.ch <- evt:
			default:
				// Queue full: drop the oldest and retry.
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
