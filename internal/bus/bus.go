// Package bus defines the transport-agnostic RPC/pub-sub contract the core
// depends on. The concrete binding (NATS) lives alongside it so the core
// never imports a transport package directly.
package bus

import "context"

// Message is the wire-level envelope carried over both RPC calls and
// pub-sub publishes: positional Args plus optional keyword Kwargs,
// mirroring the external bus's WAMP-flavored call convention (spec.md §6).
type Message struct {
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// Handler answers an RPC call registered under a URI.
type Handler func(ctx context.Context, msg Message) (Message, error)

// Subscriber receives a pub-sub publish. It must not block the dispatcher
// for longer than necessary; long-running work belongs in a goroutine.
type Subscriber func(msg Message)

// Bus is the external RPC/pub-sub collaborator. Every method is safe for
// concurrent use by multiple goroutines.
type Bus interface {
	// Register exposes an RPC handler under uri. The returned function
	// unregisters it.
	Register(ctx context.Context, uri string, handler Handler) (unregister func(), err error)

	// Subscribe feeds every publish under uri to handler. The returned
	// function unsubscribes.
	Subscribe(ctx context.Context, uri string, handler Subscriber) (unsubscribe func(), err error)

	// Publish sends msg under uri to every current subscriber. Publish
	// acknowledges transport delivery, not subscriber processing.
	Publish(ctx context.Context, uri string, msg Message) error

	// Call invokes the RPC registered under uri and waits for its reply.
	Call(ctx context.Context, uri string, msg Message) (Message, error)

	// Close releases the underlying transport connection.
	Close() error
}
