// Package correlator pairs the two independently arriving voice-handshake
// halves (voice-state and voice-server updates) into a single atomic
// update forwarded to the audio node and the player.
package correlator

import (
	"context"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/bus"
	"github.com/hiqty/ari/internal/player"
)

// voiceStateTopic and voiceServerTopic are consumed from an external
// namespace, not the prefixed bus the rest of the core publishes under
// (spec.md §6, "Pub-sub consumed from external namespace").
const (
	voiceStateTopic  = "com.discord.on_voice_state_update"
	voiceServerTopic = "com.discord.on_voice_server_update"
)

// PlayerManager is the subset of player.Manager the correlator needs:
// borrow the guild's Player, use it once, give it back, and maintain the
// crash-recovery connected-players set alongside each transition.
type PlayerManager interface {
	Get(guildID uint64) *player.Player
	Release(guildID uint64)
	MarkConnected(ctx context.Context, guildID uint64) error
	MarkDisconnected(ctx context.Context, guildID uint64) error
}

type pendingVoiceUpdate struct {
	state  *voiceState
	server *voiceServerUpdate
}

type voiceState struct {
	sessionID string
	channelID *uint64
}

type voiceServerUpdate struct {
	raw map[string]any
}

// Correlator pairs voice_state_update and voice_server_update bus events
// per guild, per spec.md §4.6.
type Correlator struct {
	bus       bus.Bus
	audioNode audionode.Client
	players   PlayerManager
	userID    uint64

	mu      sync.Mutex
	pending map[uint64]*pendingVoiceUpdate
}

// New builds a Correlator. userID is the andesite bot's own Discord user
// id: voice-state updates for any other user are ignored.
func New(b bus.Bus, audioNode audionode.Client, players PlayerManager, userID uint64) *Correlator {
	return &Correlator{
		bus:       b,
		audioNode: audioNode,
		players:   players,
		userID:    userID,
		pending:   make(map[uint64]*pendingVoiceUpdate),
	}
}

// Run subscribes to both halves and blocks until ctx is cancelled.
func (c *Correlator) Run(ctx context.Context) error {
	unsubState, err := c.bus.Subscribe(ctx, voiceStateTopic, c.handleVoiceState)
	if err != nil {
		return err
	}
	defer unsubState()

	unsubServer, err := c.bus.Subscribe(ctx, voiceServerTopic, c.handleVoiceServer)
	if err != nil {
		return err
	}
	defer unsubServer()

	<-ctx.Done()
	return nil
}

func (c *Correlator) handleVoiceState(msg bus.Message) {
	userID, ok := kwargUint64(msg.Kwargs, "user_id")
	if !ok || userID != c.userID {
		return
	}

	guildID, ok := kwargUint64(msg.Kwargs, "guild_id")
	if !ok {
		return
	}

	sessionID, _ := msg.Kwargs["session_id"].(string)
	channelID, hasChannel := kwargUint64(msg.Kwargs, "channel_id")

	state := &voiceState{sessionID: sessionID}
	if hasChannel {
		state.channelID = &channelID
	}

	if !hasChannel {
		// No channel means the bot left the voice channel: disconnect
		// immediately rather than waiting for a server half that will
		// never arrive.
		c.clear(guildID)
		c.disconnect(guildID)
		return
	}

	c.mu.Lock()
	p := c.pendingFor(guildID)
	p.state = state
	complete := p.server != nil
	c.mu.Unlock()

	if complete {
		c.complete(guildID)
	}
}

func (c *Correlator) handleVoiceServer(msg bus.Message) {
	guildID, ok := kwargUint64(msg.Kwargs, "guild_id")
	if !ok {
		return
	}

	c.mu.Lock()
	p := c.pendingFor(guildID)
	p.server = &voiceServerUpdate{raw: msg.Kwargs}
	complete := p.state != nil
	c.mu.Unlock()

	if complete {
		c.complete(guildID)
	}
}

func (c *Correlator) pendingFor(guildID uint64) *pendingVoiceUpdate {
	p, ok := c.pending[guildID]
	if !ok {
		p = &pendingVoiceUpdate{}
		c.pending[guildID] = p
	}
	return p
}

func (c *Correlator) clear(guildID uint64) {
	c.mu.Lock()
	delete(c.pending, guildID)
	c.mu.Unlock()
}

func (c *Correlator) complete(guildID uint64) {
	c.mu.Lock()
	p, ok := c.pending[guildID]
	if !ok || p.state == nil || p.server == nil {
		c.mu.Unlock()
		return
	}
	delete(c.pending, guildID)
	c.mu.Unlock()

	ctx := context.Background()

	update := audionode.VoiceServerUpdate{
		GuildID:   guildID,
		SessionID: p.state.sessionID,
		Raw:       p.server.raw,
	}
	if err := c.audioNode.VoiceServerUpdate(ctx, update); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Error("voice_server_update failed")
		return
	}

	if p.state.channelID != nil {
		c.connect(guildID, *p.state.channelID)
		return
	}

	c.disconnect(guildID)
}

func (c *Correlator) connect(guildID, channelID uint64) {
	ctx := context.Background()

	pl := c.players.Get(guildID)
	defer c.players.Release(guildID)

	if err := pl.OnConnect(ctx, channelID); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Error("on_connect failed")
		return
	}
	if err := c.players.MarkConnected(ctx, guildID); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Error("mark connected failed")
	}
}

func (c *Correlator) disconnect(guildID uint64) {
	ctx := context.Background()

	pl := c.players.Get(guildID)
	defer c.players.Release(guildID)

	if err := pl.OnDisconnect(ctx); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Error("on_disconnect failed")
		return
	}
	if err := c.players.MarkDisconnected(ctx, guildID); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Error("mark disconnected failed")
	}
}

// kwargUint64 reads a numeric kwarg as uint64. Discord ids arrive as
// decimal strings at the bus boundary (the glossary's "64-bit integer
// rendered as decimal string"); JSON-decoded numeric payloads are also
// accepted, though ids beyond float64's 53-bit mantissa will have already
// lost precision by the time they reach here.
func kwargUint64(kwargs map[string]any, key string) (uint64, bool) {
	raw, ok := kwargs[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
