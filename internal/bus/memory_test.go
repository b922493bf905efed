package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishReachesSubscriber(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	var received Message
	unsubscribe, err := b.Subscribe(ctx, "on_play", func(msg Message) { received = msg })
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, b.Publish(ctx, "on_play", Message{Args: []any{float64(7)}}))
	assert.Equal(t, []any{float64(7)}, received.Args)
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	calls := 0
	unsubscribe, err := b.Subscribe(ctx, "on_stop", func(Message) { calls++ })
	require.NoError(t, err)

	unsubscribe()
	require.NoError(t, b.Publish(ctx, "on_stop", Message{}))
	assert.Zero(t, calls)
}

func TestMemoryBusCallInvokesRegisteredHandler(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	_, err := b.Register(ctx, "enqueue", func(_ context.Context, msg Message) (Message, error) {
		return Message{Args: []any{"new-aid"}}, nil
	})
	require.NoError(t, err)

	reply, err := b.Call(ctx, "enqueue", Message{Args: []any{float64(7), "track-1"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"new-aid"}, reply.Args)
}

func TestMemoryBusCallWithoutHandlerErrors(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	_, err := b.Call(ctx, "missing", Message{})
	assert.Error(t, err)
}
