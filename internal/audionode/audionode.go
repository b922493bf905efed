// Package audionode defines the contract the core depends on for the
// remote audio-streaming node, and the pure function that turns a
// resolved audio source into the opaque track descriptor the node
// expects.
package audionode

import "context"

// AudioSource is what a metadata-service track resolution yields: enough
// information to synthesize a track descriptor without the Player ever
// inspecting the descriptor itself.
type AudioSource struct {
	Source      string
	Identifier  string
	URI         string
	StartOffset float64
	EndOffset   float64
	IsLive      bool
}

// PlayerView is the cached audio-node-side player snapshot: volume,
// paused, position, live-position, timestamps. Kept as a free-form map
// because the node's own snapshot schema is outside this core's
// boundary — PlayerStateStore caches it opaquely.
type PlayerView = map[string]any

// VoiceServerUpdate is the payload handed to the node to complete a voice
// handshake.
type VoiceServerUpdate struct {
	GuildID   uint64
	SessionID string
	Raw       map[string]any
}

// Client is the contract the core depends on for the remote audio node.
// A concrete binding (e.g. the gorilla/websocket client in this package)
// implements it against the real wire protocol; tests substitute a fake.
type Client interface {
	// Play starts playback of the given track descriptor, trimmed to
	// [start, end) when those are non-zero.
	Play(ctx context.Context, guildID uint64, track string, start, end float64) error
	// Stop halts playback without discarding any queue state.
	Stop(ctx context.Context, guildID uint64) error
	// Pause toggles the node-side paused flag.
	Pause(ctx context.Context, guildID uint64, paused bool) error
	// Seek jumps to position (seconds) in the currently playing track.
	Seek(ctx context.Context, guildID uint64, position float64) error
	// Volume sets playback volume (1.0 = unity gain).
	Volume(ctx context.Context, guildID uint64, volume float64) error
	// GetPlayer fetches the node's live view of a guild's player.
	GetPlayer(ctx context.Context, guildID uint64) (PlayerView, error)
	// VoiceServerUpdate completes a voice handshake for guildID.
	VoiceServerUpdate(ctx context.Context, update VoiceServerUpdate) error
}

// EncodeTrackDescriptor synthesizes the opaque track descriptor string
// the audio node expects from a resolved AudioSource. The Player never
// inspects the result; it only stores and replays it. Grounded on the
// LavaPlayer-format track descriptor the original's andesite client
// produces from a resolved track, here reduced to the fields this core
// actually threads through (source, identifier, uri, start and end
// offsets, live flag).
func EncodeTrackDescriptor(src AudioSource) string {
	return encodeLavaPlayerTrack(src)
}
