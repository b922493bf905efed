package events

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler receives every Event published on a Bus.
type Handler func(Event)

// Bus is a single-producer multi-consumer in-process fan-out. Handlers
// run synchronously, in emission order, in the emitting goroutine —
// matching the original implementation's single-threaded event loop
// semantics (events are "invoked sequentially by the emitter's task").
// A handler that panics is recovered and logged; it never aborts the
// emitting call or skips subsequent handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler invoked for every event published
// afterwards. Returns an unsubscribe func.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
	idx := len(b.handlers) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.handlers) {
			b.handlers[idx] = nil
		}
	}
}

// Publish dispatches ev to every current subscriber, in registration
// order, swallowing and logging any panic a handler raises.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		b.dispatch(h, ev)
	}
}

func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("uri", ev.URI()).WithField("panic", r).
				Error("event handler panicked")
		}
	}()
	h(ev)
}
