// Package events implements the per-session broadcast fabric: a bounded
// ring of recent events plus a sequence counter, with each subscriber
// reading from its own bounded channel that drops its oldest buffered
// event when full. Go has no built-in equivalent of Rust's
// tokio::sync::broadcast (which natively reports a lagged receiver's
// skip count); this hand-rolls the same "registry of per-subscriber
// channels" shape as a plain fan-out hub, with a skip counter added so a
// lagged subscriber can be told exactly how many events it missed
// instead of silently losing them.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Event is one broadcast message. Seq is monotonically increasing per Hub.
type Event struct {
	Seq         uint64
	Kind        string
	CreatedAtMs int64
	Payload     any
}

// LagError is returned by Subscription.Receive when the subscriber's
// channel overflowed between calls. The fabric itself keeps running;
// the caller is expected to resynchronize from the skip count.
type LagError struct {
	Skipped int64
}

func (e *LagError) Error() string {
	return "events: subscriber lagged"
}

const defaultSubscriberBuffer = 64

// Hub fans events out to subscribers for a single session. It keeps a
// bounded ring of the most recently published events for inspection
// (e.g. debugging, replay-on-attach) independent of subscriber state.
type Hub struct {
	mu       sync.Mutex
	seq      uint64
	capacity int
	ring     []Event
	subs     map[uint64]*Subscription
	nextID   uint64
	logger   *slog.Logger

	// onPublish and onLag, when set, let a caller observe publish/lag
	// activity (e.g. to increment Prometheus counters) without this
	// package depending on a metrics library of its own.
	onPublish func(kind string)
	onLag     func()
}

// NewHub creates a Hub retaining up to capacity recent events.
func NewHub(capacity int, logger *slog.Logger) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[uint64]*Subscription),
		logger:   logger,
	}
}

// SetHooks wires optional observability callbacks. Either may be nil.
func (h *Hub) SetHooks(onPublish func(kind string), onLag func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPublish = onPublish
	h.onLag = onLag
}

// Subscription is a single subscriber's view of a Hub.
type Subscription struct {
	id      uint64
	hub     *Hub
	ch      chan Event
	skipped int64
}

// Subscribe registers a new subscriber. Call Close when done.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:  h.nextID,
		hub: h,
		ch:  make(chan Event, defaultSubscriberBuffer),
	}
	h.subs[sub.id] = sub
	return sub
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s.id]; ok {
		delete(s.hub.subs, s.id)
		close(s.ch)
	}
}

// Receive blocks until an event is available, ctx is canceled, or a lag
// is detected. A non-nil *LagError means the channel overflowed since
// the last Receive call; no Event is returned for that call, and the
// subscription remains usable for the next call.
func (s *Subscription) Receive(ctx context.Context) (Event, error) {
	if n := atomic.SwapInt64(&s.skipped, 0); n > 0 {
		return Event{}, &LagError{Skipped: n}
	}
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return Event{}, ctx.Err()
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Publish broadcasts an event to every current subscriber. If there are
// no subscribers the event is recorded in the ring but otherwise
// silently dropped (log-only), matching the teacher's Hub.Broadcast
// no-op-on-empty semantics.
func (h *Hub) Publish(kind string, createdAtMs int64, payload any) Event {
	h.mu.Lock()
	h.seq++
	ev := Event{Seq: h.seq, Kind: kind, CreatedAtMs: createdAtMs, Payload: payload}
	h.ring = append(h.ring, ev)
	if len(h.ring) > h.capacity {
		h.ring = h.ring[len(h.ring)-h.capacity:]
	}
	if h.onPublish != nil {
		h.onPublish(kind)
	}
	if len(h.subs) == 0 {
		h.mu.Unlock()
		h.logger.Debug("event dropped, no subscribers", "kind", kind, "seq", ev.Seq)
		return ev
	}
	for _, sub := range h.subs {
		sub.deliver(ev)
	}
	h.mu.Unlock()
	return ev
}

// deliver attempts a non-blocking send. On overflow it drops the oldest
// buffered event to make room, then records the drop in the skip
// counter rather than blocking the publisher.
func (s *Subscription) deliver(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
		atomic.AddInt64(&s.skipped, 1)
		s.reportLag()
	default:
	}
	select {
	case s.ch <- ev:
	default:
		atomic.AddInt64(&s.skipped, 1)
		s.reportLag()
	}
}

func (s *Subscription) reportLag() {
	if s.hub.onLag != nil {
		s.hub.onLag()
	}
}

// Recent returns a snapshot of the most recently retained events.
func (h *Hub) Recent() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.ring))
	copy(out, h.ring)
	return out
}

// SubscriberCount reports how many subscriptions are currently active.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
