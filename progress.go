package pagecat

import (
	"sync"

	"github.com/pevans/pagecat/scroll"
)

// subscriberBuffer is the number of updates a subscriber may fall behind
// before updates to it are dropped.
const subscriberBuffer = 16

// ProgressHub fans scroll progress out to any number of subscribers. A slow
// subscriber misses updates rather than stalling the scroll driver.
type ProgressHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan scroll.Progress
}

// NewProgressHub creates a hub with no subscribers.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[int]chan scroll.Progress)}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; calling it more than once is harmless.
func (h *ProgressHub) Subscribe() (<-chan scroll.Progress, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan scroll.Progress, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Publish sends p to every subscriber without blocking.
func (h *ProgressHub) Publish(p scroll.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *ProgressHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
