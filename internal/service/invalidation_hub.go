package service

import (
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 16

// InvalidationHub fans invalidation events out to SSE subscribers.
// Slow subscribers drop events rather than block publishers.
type InvalidationHub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Invalidation
	nextID uint64
	logger *zap.Logger
}

// NewInvalidationHub constructs an empty hub.
func NewInvalidationHub(logger *zap.Logger) *InvalidationHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationHub{subs: make(map[uint64]chan Invalidation), logger: logger}
}

// Subscribe registers a listener. The returned cancel func closes the channel.
func (h *InvalidationHub) Subscribe() (<-chan Invalidation, func()) {
	ch := make(chan Invalidation, subscriberBuffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers one event per tag to every subscriber.
func (h *InvalidationHub) Publish(tags ...string) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, tag := range tags {
		event := newInvalidation(tag)
		for id, ch := range h.subs {
			select {
			case ch <- event:
			default:
				h.logger.Debug("dropping invalidation for slow subscriber", zap.Uint64("subscriber", id), zap.String("tag", tag))
			}
		}
	}
}

// Subscribers returns the number of active listeners.
func (h *InvalidationHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
