package app

import (
	"sync"

	"github.com/raysh454/hunter/internal/pipeline"
)

// EventHub fans pipeline events out to subscribers. Slow subscribers lose
// events rather than blocking the driver.
type EventHub struct {
	mu     sync.Mutex
	subs   map[int]chan pipeline.Event
	nextID int
	closed bool
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[int]chan pipeline.Event)}
}

// Observe implements pipeline.Observer.
func (h *EventHub) Observe(ev pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a buffered event channel and a func that detaches and
// closes it. After Close the returned channel is already closed.
func (h *EventHub) Subscribe(buffer int) (<-chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, max(buffer, 1))
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers reports how many subscriptions are attached.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
