package adc

import "sync"

// Topic fans a LightReading out to a fixed set of subscribers, each with a
// capacity-1 "latest wins" mailbox (spec.md §4.3: "sole publisher on a topic
// with capacity 1 and three subscribers... latest-wins policy is
// acceptable; consumers are expected to keep up"), and spec.md §5's
// "publishers on the light-reading topic have capacity 1". Adapted from the
// teacher's internal/hub.Hub broadcast-to-many-clients shape, replacing
// drop/kick backpressure with unconditional overwrite since there is never
// more than one pending reading per subscriber by design.
type Topic struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's capacity-1 mailbox.
type Subscription struct {
	C chan LightReading
}

// NewTopic allocates an empty topic.
func NewTopic() *Topic {
	return &Topic{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. In cmd/latemate-device the light
// streamer and the light recorder each hold exactly one Subscription for the
// program's lifetime; no LED indicator subscribes.
func (t *Topic) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan LightReading, 1)}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription.
func (t *Topic) Unsubscribe(sub *Subscription) {
	t.mu.Lock()
	delete(t.subs, sub)
	t.mu.Unlock()
}

// Publish overwrites every subscriber's mailbox with r, discarding whatever
// reading (if any) was sitting unread.
func (t *Topic) Publish(r LightReading) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for sub := range t.subs {
		select {
		case sub.C <- r:
		default:
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- r:
			default:
			}
		}
	}
}
