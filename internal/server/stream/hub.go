package stream

import (
	"sync"
	"sync/atomic"
)

// Hub fans decoded characters out to every stream subscriber. Publish never
// blocks: a subscriber that falls behind by more than its backlog loses bytes.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

// Subscription receives published bytes on C until Close.
type Subscription struct {
	C   <-chan byte
	c   chan byte
	hub *Hub
}

// NewHub returns a hub without subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given backlog.
func (h *Hub) Subscribe(backlog int) *Subscription {
	if backlog <= 0 {
		backlog = 1
	}
	c := make(chan byte, backlog)
	s := &Subscription{C: c, c: c, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close unregisters s and closes its channel.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.c)
	}
}

// Publish offers b to every subscriber.
func (h *Hub) Publish(b byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.c <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many bytes were lost to slow subscribers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
