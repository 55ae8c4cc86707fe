package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const defaultBuffer = 64

// Stream is an open subscription as seen by a consumer.
type Stream interface {
	// Events delivers matching changes. It is closed once the stream ends.
	Events() <-chan Change
	// Close releases the subscription. It is safe to call more than once.
	Close() error
}

// Broker publishes changes and hands out subscriptions.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(ctx context.Context, f Filter) (*Subscription, error)
}

// Subscription is a hub-side subscription with a bounded event buffer.
type Subscription struct {
	ID     string
	Filter Filter

	hub    *Hub
	events chan Change
	once   sync.Once
}

// Events implements Stream.
func (s *Subscription) Events() <-chan Change {
	return s.events
}

// Close implements Stream.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.hub.remove(s)
	})
	return nil
}

// Hub fans changes out to in-process subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber event buffer size.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[string]*Subscription),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscription for f.
func (h *Hub) Subscribe(_ context.Context, f Filter) (*Subscription, error) {
	if f.Table == "" {
		return nil, fmt.Errorf("subscribing: table is required")
	}

	s := &Subscription{
		ID:     uuid.NewString(),
		Filter: f,
		hub:    h,
		events: make(chan Change, h.buffer),
	}

	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()

	slog.Debug("realtime subscribe", "id", s.ID, "filter", f.String())
	return s, nil
}

// Publish delivers c to every matching subscriber without blocking.
// A subscriber whose buffer is full misses the change.
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if !s.Filter.Match(c) {
			continue
		}
		select {
		case s.events <- c:
		default:
			slog.Warn("realtime subscriber buffer full, dropping change",
				"id", s.ID, "table", c.Table, "type", c.Type)
		}
	}
	return nil
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s.ID)
	close(s.events)
	h.mu.Unlock()

	slog.Debug("realtime unsubscribe", "id", s.ID)
}
