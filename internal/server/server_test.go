package server

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/bus"
	"github.com/hiqty/ari/internal/events"
	"github.com/hiqty/ari/internal/metadata"
	"github.com/hiqty/ari/internal/player"
)

type fakeAudioNode struct{ calls []string }

func (f *fakeAudioNode) Play(context.Context, uint64, string, float64, float64) error {
	f.calls = append(f.calls, "play")
	return nil
}
func (f *fakeAudioNode) Stop(context.Context, uint64) error {
	f.calls = append(f.calls, "stop")
	return nil
}
func (f *fakeAudioNode) Pause(context.Context, uint64, bool) error {
	f.calls = append(f.calls, "pause")
	return nil
}
func (f *fakeAudioNode) Seek(context.Context, uint64, float64) error {
	f.calls = append(f.calls, "seek")
	return nil
}
func (f *fakeAudioNode) Volume(context.Context, uint64, float64) error {
	f.calls = append(f.calls, "volume")
	return nil
}
func (f *fakeAudioNode) GetPlayer(context.Context, uint64) (audionode.PlayerView, error) {
	return nil, nil
}
func (f *fakeAudioNode) VoiceServerUpdate(context.Context, audionode.VoiceServerUpdate) error {
	f.calls = append(f.calls, "voice-server-update")
	return nil
}

type fakeMetadata struct{}

func (fakeMetadata) Resolve(_ context.Context, eid string) (audionode.AudioSource, error) {
	return audionode.AudioSource{Source: "fake", Identifier: eid}, nil
}
func (fakeMetadata) TrackInfoFor(_ context.Context, eid string) (metadata.TrackInfo, bool, error) {
	return metadata.TrackInfo{Eid: eid}, true, nil
}

var (
	_ audionode.Client = (*fakeAudioNode)(nil)
	_ metadata.Client  = fakeMetadata{}
)

func newTestServer(t *testing.T) (*Server, *player.Manager, *bus.MemoryBus) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	internalEvents := events.NewBus()
	manager := player.NewManager(client, "ari", &fakeAudioNode{}, fakeMetadata{}, internalEvents)
	external := bus.NewMemoryBus()
	metrics := NewMetrics(prometheus.NewRegistry())

	srv := New(manager, internalEvents, external, "ari", metrics)
	return srv, manager, external
}

func TestRegisterWiresEveryRPC(t *testing.T) {
	srv, _, external := newTestServer(t)
	ctx := context.Background()

	unregister, err := srv.Register(ctx)
	require.NoError(t, err)
	defer unregister()

	for _, name := range []string{
		"connect", "disconnect", "queue", "history", "enqueue", "dequeue",
		"move", "pause", "set_volume", "seek",
		"skip_next", "skip_next_chapter", "skip_previous", "skip_previous_chapter",
	} {
		_, err := external.Call(ctx, "ari."+name, bus.Message{})
		assert.Error(t, err, "expected %s to be registered (and fail on missing args)", name)
	}
}

func TestConnectForwardsToVoiceGatewayWithoutDrivingPlayer(t *testing.T) {
	srv, _, external := newTestServer(t)
	ctx := context.Background()
	_ = srv

	var gotArgs []any
	_, err := external.Register(ctx, "com.discord.update_voice_state", func(_ context.Context, msg bus.Message) (bus.Message, error) {
		gotArgs = msg.Args
		return bus.Message{}, nil
	})
	require.NoError(t, err)

	onConnect := make(chan bus.Message, 1)
	unsubscribe, err := external.Subscribe(ctx, "ari.on_connect", func(msg bus.Message) { onConnect <- msg })
	require.NoError(t, err)
	defer unsubscribe()

	unregister, err := srv.Register(ctx)
	require.NoError(t, err)
	defer unregister()

	_, err = external.Call(ctx, "ari.connect", bus.Message{Args: []any{uint64(7), uint64(42)}})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(7), uint64(42)}, gotArgs)

	// connect only forwards to the voice gateway; the player itself is
	// untouched until the Correlator observes the real voice handshake, so
	// no on_connect event should have fired.
	select {
	case msg := <-onConnect:
		t.Fatalf("unexpected on_connect event fired by connect RPC: %+v", msg)
	default:
	}
}

func TestConnectWithoutVoiceGatewayHandlerReturnsError(t *testing.T) {
	srv, _, external := newTestServer(t)
	ctx := context.Background()

	unregister, err := srv.Register(ctx)
	require.NoError(t, err)
	defer unregister()

	_, err = external.Call(ctx, "ari.connect", bus.Message{Args: []any{uint64(7), uint64(42)}})
	assert.Error(t, err)
}

func TestEnqueueAfterCorrelatorDrivenConnect(t *testing.T) {
	srv, manager, external := newTestServer(t)
	ctx := context.Background()

	unregister, err := srv.Register(ctx)
	require.NoError(t, err)
	defer unregister()

	p := manager.Get(7)
	require.NoError(t, p.OnConnect(ctx, 42))
	manager.Release(7)

	reply, err := external.Call(ctx, "ari.enqueue", bus.Message{Args: []any{uint64(7), "track-1"}})
	require.NoError(t, err)
	require.Len(t, reply.Args, 1)
}

func TestQueuePaginatesWithDefaultEntriesPerPage(t *testing.T) {
	srv, _, external := newTestServer(t)
	ctx := context.Background()

	unregister, err := srv.Register(ctx)
	require.NoError(t, err)
	defer unregister()

	for i := 0; i < 3; i++ {
		_, err := external.Call(ctx, "ari.enqueue", bus.Message{Args: []any{uint64(7), "track"}})
		require.NoError(t, err)
	}

	reply, err := external.Call(ctx, "ari.queue", bus.Message{Args: []any{uint64(7), int64(0)}})
	require.NoError(t, err)
	require.Len(t, reply.Args, 1)
	entries, ok := reply.Args[0].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 3)
}

func TestMoveWithInvalidWhenceReturnsInvalidArgument(t *testing.T) {
	srv, _, external := newTestServer(t)
	ctx := context.Background()

	unregister, err := srv.Register(ctx)
	require.NoError(t, err)
	defer unregister()

	_, err = external.Call(ctx, "ari.move", bus.Message{
		Args: []any{uint64(7), "some-aid", int64(0), "sideways"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whence")
}

func TestPlayerEventsForwardOntoExternalBus(t *testing.T) {
	srv, manager, external := newTestServer(t)
	ctx := context.Background()
	_ = srv

	received := make(chan bus.Message, 8)
	unsubscribe, err := external.Subscribe(ctx, "ari.on_connect", func(msg bus.Message) {
		received <- msg
	})
	require.NoError(t, err)
	defer unsubscribe()

	p := manager.Get(7)
	defer manager.Release(7)
	require.NoError(t, p.OnConnect(ctx, 42))

	select {
	case msg := <-received:
		require.Len(t, msg.Args, 2)
		assert.Equal(t, "7", msg.Args[0])
	default:
		t.Fatal("expected on_connect to be forwarded onto the external bus")
	}
}
