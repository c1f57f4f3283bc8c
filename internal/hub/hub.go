// Package hub implements the fan-out distributor: every published state is
// appended to the bounded history window and delivered to all current
// subscribers. Delivery is lossy: a slow subscriber misses intermediate
// states rather than blocking the producer, and a later state supersedes
// the ones it missed.
package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// DefaultBuffer is the per-subscriber channel capacity used when the caller
// does not specify one.
const DefaultBuffer = 100

// History is the bounded recent-state window used to seed new subscribers.
// Backed by Redis in production (internal/history); fakes in tests. The window
// is advisory: append failures are logged and publishing continues.
type History interface {
	// Append records a newly published state, trimming the window to capacity.
	Append(ctx context.Context, s logic.State) error
	// Recent returns the current window ordered oldest first.
	Recent(ctx context.Context) ([]logic.State, error)
}

// Subscription is one observer's handle on the live stream.
type Subscription struct {
	id  uuid.UUID
	ch  chan logic.State
	hub *Hub
}

// States returns the channel on which published states are delivered, in
// publish order.
func (s *Subscription) States() <-chan logic.State {
	return s.ch
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.hub.remove(s.id)
}

// Hub broadcasts classified states to all current subscribers.
type Hub struct {
	history History
	logger  *zap.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]chan logic.State

	dropped atomic.Uint64
}

// New creates a Hub. history may be nil, in which case subscribers start with
// an empty window.
func New(history History, logger *zap.Logger) *Hub {
	return &Hub{
		history: history,
		logger:  logger,
		subs:    make(map[uuid.UUID]chan logic.State),
	}
}

// Publish appends s to the history window and delivers it to every current
// subscriber. A subscriber whose buffer is full misses this state; other
// subscribers and the caller are unaffected.
func (h *Hub) Publish(ctx context.Context, s logic.State) {
	if h.history != nil {
		if err := h.history.Append(ctx, s); err != nil {
			h.logger.Warn("history append failed", zap.Error(err))
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- s:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a new observer with the given buffer capacity
// (DefaultBuffer if <= 0). The subscription receives only states published
// after this call returns.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		id:  uuid.New(),
		ch:  make(chan logic.State, buffer),
		hub: h,
	}

	h.mu.Lock()
	h.subs[sub.id] = sub.ch
	h.mu.Unlock()
	return sub
}

// SubscribeWithHistory snapshots the history window and then registers for
// live delivery, in that order. The ordering guarantees that no returned
// history record was generated after a state the subscription will deliver;
// a state published between the snapshot and the registration is simply
// missed, which is acceptable because the window is advisory.
func (h *Hub) SubscribeWithHistory(ctx context.Context, buffer int) ([]logic.State, *Subscription) {
	var past []logic.State
	if h.history != nil {
		var err error
		past, err = h.history.Recent(ctx)
		if err != nil {
			h.logger.Warn("history fetch failed, seeding empty window", zap.Error(err))
			past = nil
		}
	}
	return past, h.Subscribe(buffer)
}

// Subscribers returns the number of currently registered observers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the total number of states discarded because a subscriber's
// buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// remove deletes the subscription and closes its channel. Publish sends under
// the read lock, so the close cannot race a send.
func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}
