package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// defaultCallTimeout bounds Call when ctx carries no deadline of its own.
const defaultCallTimeout = 10 * time.Second

// NATSBus implements Bus over a NATS connection. Subjects equal the URIs
// passed in verbatim — the configured bus prefix is folded into the URI by
// internal/server before it ever reaches here.
type NATSBus struct {
	conn *nats.Conn
}

// Dial connects to url (a NATS server URL, or a comma-separated list) and
// returns a ready NATSBus.
func Dial(url string, opts ...nats.Option) (*NATSBus, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSBus{conn: conn}, nil
}

func (b *NATSBus) Register(_ context.Context, uri string, handler Handler) (func(), error) {
	sub, err := b.conn.QueueSubscribe(uri, uri+".workers", func(natsMsg *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
			b.replyError(natsMsg, err)
			return
		}

		reply, err := handler(context.Background(), msg)
		if err != nil {
			b.replyError(natsMsg, err)
			return
		}

		data, err := json.Marshal(replyEnvelope{Result: &reply})
		if err != nil {
			b.replyError(natsMsg, err)
			return
		}
		_ = natsMsg.Respond(data)
	})
	if err != nil {
		return nil, err
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

func (b *NATSBus) replyError(natsMsg *nats.Msg, err error) {
	data, marshalErr := json.Marshal(replyEnvelope{Error: err.Error()})
	if marshalErr != nil {
		return
	}
	_ = natsMsg.Respond(data)
}

// replyEnvelope wraps an RPC reply so Call can distinguish a handler error
// from a successful (possibly empty) Message.
type replyEnvelope struct {
	Result *Message `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func (b *NATSBus) Subscribe(_ context.Context, uri string, handler Subscriber) (func(), error) {
	sub, err := b.conn.Subscribe(uri, func(natsMsg *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, err
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

func (b *NATSBus) Publish(_ context.Context, uri string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.conn.Publish(uri, data)
}

func (b *NATSBus) Call(ctx context.Context, uri string, msg Message) (Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	natsReply, err := b.conn.RequestWithContext(ctx, uri, data)
	if err != nil {
		return Message{}, err
	}

	var reply replyEnvelope
	if err := json.Unmarshal(natsReply.Data, &reply); err != nil {
		return Message{}, err
	}
	if reply.Error != "" {
		return Message{}, &RemoteError{Message: reply.Error}
	}
	if reply.Result == nil {
		return Message{}, nil
	}
	return *reply.Result, nil
}

func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}

// RemoteError wraps an error message returned by a remote RPC handler.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

var _ Bus = (*NATSBus)(nil)
