// Package hub implements the change notification fan-out: a per-key
// registry of live subscribers fed from the write path's commit order, with
// best-effort at-least-once delivery that never blocks a writer.
package hub

import (
	"sync"
)

// Change is one committed mutation, addressed by key only: subscribers
// re-fetch the document rather than receiving its value inline.
type Change struct {
	Key string
}

const subscriberBuffer = 64

type subscriber struct {
	ch     chan Change
	closed bool
}

// Hub fans committed changes out to subscribers watching specific keys.
// Registration and publish both take one short-lived hub-wide lock; the
// commit path never blocks on a slow subscriber, since enqueue is
// non-blocking and a subscriber that can't keep up is dropped and its
// stream closed rather than stalling the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscription is a live watch on one key. Changes delivers committed
// updates to that key; Stop unregisters and releases the subscription's
// channel.
type Subscription struct {
	Changes <-chan Change
	Stop    func()
}

// Watch registers a new subscriber for key and returns its subscription.
func (h *Hub) Watch(key string) Subscription {
	sub := &subscriber{ch: make(chan Change, subscriberBuffer)}

	h.mu.Lock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[key] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	stop := func() {
		h.mu.Lock()
		h.removeLocked(key, sub)
		h.mu.Unlock()
	}
	return Subscription{Changes: sub.ch, Stop: stop}
}

func (h *Hub) removeLocked(key string, sub *subscriber) {
	set, ok := h.subs[key]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, key)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish delivers one Change to every subscriber currently watching key.
// Delivery is non-blocking: a subscriber whose buffer is full is dropped
// and its stream closed rather than stalling the caller.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[c.Key]
	if !ok {
		return
	}
	var slow []*subscriber
	for sub := range set {
		select {
		case sub.ch <- c:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		h.removeLocked(c.Key, sub)
	}
}

// PublishAll delivers one Change per key, in the given order — callers pass
// keys already sorted into commit order so subscribers observe updates in
// the order they were written.
func (h *Hub) PublishAll(keys []string) {
	for _, k := range keys {
		h.Publish(Change{Key: k})
	}
}
