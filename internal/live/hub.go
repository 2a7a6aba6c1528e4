// Package live implements the read projection's delivery side: a
// topic-keyed hub fanning change events out to connected clients.
// Delivery is at-least-once with no ordering and no replay. A
// subscriber that falls behind is evicted (its channel closed), which
// the client observes as a dropped stream and answers with a
// reconnect plus full re-fetch — the same resynchronization it must
// already perform after any disconnect, since missed events are not
// buffered.
package live

import (
	"sync"

	"github.com/iliyamo/slot-reservation/internal/queue"
)

// subscriberBuffer is the per-subscriber event backlog. Small on
// purpose: events are resync cues, so a client that cannot keep up
// with a handful of them is better served by one full resync than by
// a long queue of stale cues.
const subscriberBuffer = 16

// Subscriber is one live view client's subscription. Events arrive on
// C until Close is called or the hub evicts the subscriber, after
// which C is closed.
type Subscriber struct {
	C      <-chan queue.ChangeEvent
	ch     chan queue.ChangeEvent
	topics map[string]bool
	hub    *Hub
	id     uint64

	closeOnce sync.Once
}

// Close detaches the subscriber from the hub and closes C.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// Topics reports the topics this subscriber listens to.
func (s *Subscriber) Topics() []string {
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

// Hub fans change events out to subscribers by topic. It is safe for
// concurrent use by the engine, the broker consumer and any number of
// connection handlers.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscriber
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscriber)}
}

// Subscribe registers interest in the given topics. Unknown topic
// names are accepted and simply never fire. An empty topic list
// subscribes to everything.
func (h *Hub) Subscribe(topics ...string) *Subscriber {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	ch := make(chan queue.ChangeEvent, subscriberBuffer)
	s := &Subscriber{C: ch, ch: ch, topics: set, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	return s
}

func (h *Hub) unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
	}
	h.mu.Unlock()
	s.closeOnce.Do(func() { close(s.ch) })
}

// Broadcast delivers the event to every subscriber of its topic
// without blocking. A subscriber whose buffer is full is evicted so a
// stalled client can never back-pressure the engine; the closed
// channel tells that client to resynchronize.
func (h *Hub) Broadcast(ev queue.ChangeEvent) {
	h.mu.Lock()
	var evicted []*Subscriber
	for _, s := range h.subs {
		if len(s.topics) > 0 && !s.topics[ev.Topic] {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			evicted = append(evicted, s)
		}
	}
	for _, s := range evicted {
		delete(h.subs, s.id)
	}
	h.mu.Unlock()
	for _, s := range evicted {
		s.closeOnce.Do(func() { close(s.ch) })
	}
}

// Close evicts all subscribers and rejects future ones. Used on
// server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[uint64]*Subscriber)
	h.mu.Unlock()
	for _, s := range subs {
		s.closeOnce.Do(func() { close(s.ch) })
	}
}

// Len reports the number of attached subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
