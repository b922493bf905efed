package correlator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/bus"
	"github.com/hiqty/ari/internal/events"
	"github.com/hiqty/ari/internal/metadata"
	"github.com/hiqty/ari/internal/player"
)

type fakeAudioNode struct {
	calls   []string
	updates []audionode.VoiceServerUpdate
}

func (f *fakeAudioNode) Play(context.Context, uint64, string, float64, float64) error { return nil }
func (f *fakeAudioNode) Stop(context.Context, uint64) error                           { return nil }
func (f *fakeAudioNode) Pause(context.Context, uint64, bool) error                    { return nil }
func (f *fakeAudioNode) Seek(context.Context, uint64, float64) error                  { return nil }
func (f *fakeAudioNode) Volume(context.Context, uint64, float64) error                { return nil }
func (f *fakeAudioNode) GetPlayer(context.Context, uint64) (audionode.PlayerView, error) {
	return nil, nil
}

func (f *fakeAudioNode) VoiceServerUpdate(_ context.Context, update audionode.VoiceServerUpdate) error {
	f.calls = append(f.calls, "voice_server_update")
	f.updates = append(f.updates, update)
	return nil
}

type fakeMetadata struct{}

func (fakeMetadata) Resolve(_ context.Context, eid string) (audionode.AudioSource, error) {
	return audionode.AudioSource{Source: "fake", Identifier: eid}, nil
}

func (fakeMetadata) TrackInfoFor(_ context.Context, eid string) (metadata.TrackInfo, bool, error) {
	return metadata.TrackInfo{Eid: eid}, true, nil
}

func newTestCorrelator(t *testing.T) (*Correlator, *bus.MemoryBus, *fakeAudioNode, *player.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	node := &fakeAudioNode{}
	eventBus := events.NewBus()
	manager := player.NewManager(client, "ari", node, fakeMetadata{}, eventBus)

	b := bus.NewMemoryBus()
	c := New(b, node, manager, 999)
	return c, b, node, manager
}

func publishVoiceState(ctx context.Context, t *testing.T, b *bus.MemoryBus, kwargs map[string]any) {
	t.Helper()
	require.NoError(t, b.Publish(ctx, voiceStateTopic, bus.Message{Kwargs: kwargs}))
}

func publishVoiceServer(ctx context.Context, t *testing.T, b *bus.MemoryBus, kwargs map[string]any) {
	t.Helper()
	require.NoError(t, b.Publish(ctx, voiceServerTopic, bus.Message{Kwargs: kwargs}))
}

func TestCorrelatorIgnoresOtherUsers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, b, node, _ := newTestCorrelator(t)

	go c.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	publishVoiceState(ctx, t, b, map[string]any{
		"user_id":    float64(1),
		"guild_id":   float64(7),
		"channel_id": float64(42),
	})
	time.Sleep(10 * time.Millisecond)

	assert.Empty(t, node.calls)
}

func TestCorrelatorCompletesOnBothHalves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, b, node, _ := newTestCorrelator(t)

	go c.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	publishVoiceState(ctx, t, b, map[string]any{
		"user_id":    float64(999),
		"guild_id":   float64(7),
		"session_id": "sess-1",
		"channel_id": float64(42),
	})
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, node.calls, "should wait for the server half before completing")

	publishVoiceServer(ctx, t, b, map[string]any{
		"guild_id": float64(7),
		"endpoint": "voice.example.com",
	})
	time.Sleep(10 * time.Millisecond)

	require.Len(t, node.updates, 1)
	assert.EqualValues(t, 7, node.updates[0].GuildID)
	assert.Equal(t, "sess-1", node.updates[0].SessionID)
}

func TestCorrelatorCompletesWithDecimalStringIds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, b, node, _ := newTestCorrelator(t)

	go c.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	// Real Discord gateway payloads carry every snowflake id as a decimal
	// string; the correlator must parse these the same as JSON numbers.
	publishVoiceState(ctx, t, b, map[string]any{
		"user_id":    "999",
		"guild_id":   "7",
		"session_id": "sess-1",
		"channel_id": "42",
	})
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, node.calls, "should wait for the server half before completing")

	publishVoiceServer(ctx, t, b, map[string]any{
		"guild_id": "7",
		"endpoint": "voice.example.com",
	})
	time.Sleep(10 * time.Millisecond)

	require.Len(t, node.updates, 1)
	assert.EqualValues(t, 7, node.updates[0].GuildID)
	assert.Equal(t, "sess-1", node.updates[0].SessionID)
}

func TestCorrelatorDisconnectsImmediatelyWithoutChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, b, node, _ := newTestCorrelator(t)

	go c.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	publishVoiceState(ctx, t, b, map[string]any{
		"user_id":  float64(999),
		"guild_id": float64(7),
	})
	time.Sleep(10 * time.Millisecond)

	assert.Empty(t, node.calls, "disconnect never calls the audio node's voice_server_update")
}
