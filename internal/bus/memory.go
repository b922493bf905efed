package bus

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus used by tests that need a real
// implementation of the contract without a NATS server.
type MemoryBus struct {
	mu          sync.Mutex
	subscribers map[string][]Subscriber
	handlers    map[string]Handler
}

// NewMemoryBus returns an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[string][]Subscriber),
		handlers:    make(map[string]Handler),
	}
}

func (b *MemoryBus) Register(_ context.Context, uri string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[uri] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, uri)
	}, nil
}

func (b *MemoryBus) Subscribe(_ context.Context, uri string, handler Subscriber) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[uri] = append(b.subscribers[uri], handler)
	index := len(b.subscribers[uri]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[uri]
		if index < len(subs) {
			subs[index] = nil
		}
	}, nil
}

func (b *MemoryBus) Publish(_ context.Context, uri string, msg Message) error {
	b.mu.Lock()
	subs := append([]Subscriber(nil), b.subscribers[uri]...)
	b.mu.Unlock()

	for _, s := range subs {
		if s != nil {
			s(msg)
		}
	}
	return nil
}

func (b *MemoryBus) Call(ctx context.Context, uri string, msg Message) (Message, error) {
	b.mu.Lock()
	handler := b.handlers[uri]
	b.mu.Unlock()

	if handler == nil {
		return Message{}, fmt.Errorf("bus: no handler registered for %q", uri)
	}
	return handler(ctx, msg)
}

func (b *MemoryBus) Close() error { return nil }

var _ Bus = (*MemoryBus)(nil)
