package events

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/otto-ai/otto/internal/logging"
)

// Handler consumes one event. A handler that returns an error or panics is
// logged and isolated: it never prevents later handlers from running and
// never aborts the dispatch that published the event.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	handler Handler
	once    sync.Once
	bus     *Bus
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Bus delivers events to subscribers synchronously, in subscription order.
// The subscriber set may be mutated concurrently with publishing; Publish
// snapshots the set before iterating and never holds the lock across a
// handler call.
type Bus struct {
	mu     sync.RWMutex
	logger *log.Logger
	subs   []*subscription
}

// NewBus creates an empty bus.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{logger: logging.Or(logger)}
}

// Subscribe registers h and returns its unsubscribe function. Unsubscribing
// is idempotent. A handler subscribed after an event fired never sees it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	sub := &subscription{handler: h, bus: b}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.close
}

// Publish delivers ev to every subscriber present when it is called.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	snapshot := make([]*subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		b.deliver(ctx, sub, ev)
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"kind", ev.Kind().String(), "request", RequestID(ev), "panic", r)
		}
	}()

	if err := sub.handler(ctx, ev); err != nil {
		b.logger.Error("event subscriber failed",
			"kind", ev.Kind().String(), "request", RequestID(ev), "error", err)
	}
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
