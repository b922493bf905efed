// Package server translates the external bus's RPC surface and pub-sub
// events into calls against internal/player's Manager, and republishes
// player events back onto the bus under the configured prefix.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/hiqty/ari/internal/apperror"
	"github.com/hiqty/ari/internal/bus"
	"github.com/hiqty/ari/internal/entry"
	"github.com/hiqty/ari/internal/events"
	"github.com/hiqty/ari/internal/player"
	"github.com/hiqty/ari/internal/store"
)

// defaultEntriesPerPage matches spec.md §6's queue/history RPC default.
const defaultEntriesPerPage = 50

// Server wires the bus's RPC surface (spec.md §6) onto a player.Manager
// and forwards every player event onto the bus's pub-sub surface.
type Server struct {
	manager *player.Manager
	bus     bus.Bus
	prefix  string
	metrics *Metrics
}

// New builds a Server. internalEvents is the process-wide events.Bus
// passed to player.NewManager — every player's events already funnel
// through it, each carrying its guild id; the Server's only job with it
// is forwarding each one onto the external bus under the prefixed URI.
func New(manager *player.Manager, internalEvents *events.Bus, external bus.Bus, prefix string, metrics *Metrics) *Server {
	s := &Server{manager: manager, bus: external, prefix: prefix, metrics: metrics}
	internalEvents.Subscribe(s.onPlayerEvent)
	return s
}

func (s *Server) uri(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "." + name
}

func (s *Server) onPlayerEvent(ev events.Event) {
	msg := bus.Message{Args: ev.Args(), Kwargs: ev.Kwargs()}
	if err := s.bus.Publish(context.Background(), s.uri(ev.URI()), msg); err != nil {
		log.WithField("uri", ev.URI()).WithError(err).Error("failed to publish event")
		return
	}
	s.metrics.EventsPublished.WithLabelValues(ev.URI()).Inc()
}

// rpcSpec is one RPC registration: its wire name and handler.
type rpcSpec struct {
	name    string
	handler bus.Handler
}

// Register registers every RPC from spec.md §6 under s.prefix and
// returns a function that unregisters all of them.
func (s *Server) Register(ctx context.Context) (func(), error) {
	specs := []rpcSpec{
		{"connect", s.handleConnect},
		{"disconnect", s.handleDisconnect},
		{"queue", s.handleQueue},
		{"history", s.handleHistory},
		{"enqueue", s.handleEnqueue},
		{"dequeue", s.handleDequeue},
		{"move", s.handleMove},
		{"pause", s.handlePause},
		{"set_volume", s.handleSetVolume},
		{"seek", s.handleSeek},
		{"skip_next", s.handleSkipNext},
		{"skip_next_chapter", s.handleSkipNextChapter},
		{"skip_previous", s.handleSkipPrevious},
		{"skip_previous_chapter", s.handleSkipPreviousChapter},
	}

	var unregisterFns []func()
	for _, spec := range specs {
		unregister, err := s.bus.Register(ctx, s.uri(spec.name), s.instrument(spec.name, spec.handler))
		if err != nil {
			for _, fn := range unregisterFns {
				fn()
			}
			return nil, fmt.Errorf("server: registering %s: %w", spec.name, err)
		}
		unregisterFns = append(unregisterFns, unregister)
	}

	return func() {
		for _, fn := range unregisterFns {
			fn()
		}
	}, nil
}

// instrument wraps handler with command-duration/error metrics and maps
// apperror.InvalidArgument onto the bus's error channel, per spec.md §7's
// "user-visible errors propagate on RPC returns" policy. Any other error
// is counted, logged, and returned to the caller unchanged.
func (s *Server) instrument(name string, handler bus.Handler) bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Message, error) {
		timer := prometheus.NewTimer(s.metrics.CommandDuration.WithLabelValues(name))
		defer timer.ObserveDuration()

		reply, err := handler(ctx, msg)
		if err != nil {
			var invalid *apperror.InvalidArgument
			if errors.As(err, &invalid) {
				s.metrics.CommandErrors.WithLabelValues(name, "invalid_argument").Inc()
				return bus.Message{}, err
			}

			s.metrics.CommandErrors.WithLabelValues(name, "internal").Inc()
			log.WithField("command", name).WithError(err).Error("command failed")
			return bus.Message{}, err
		}
		return reply, nil
	}
}

// handleConnect only forwards to the voice-gateway bus peer (spec.md §6,
// `component.py`'s connect: "self._session.call(com.discord.update_voice_state,
// guild_id, channel_id)"). The actual Player.OnConnect is driven later by
// the Correlator once the genuine voice_state_update/voice_server_update
// pair arrives; calling it here too would double-fire on_connect against
// a voice session that doesn't exist yet.
func (s *Server) handleConnect(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	channelID, err := argUint64(msg.Args, 1, "channel_id")
	if err != nil {
		return bus.Message{}, err
	}

	_, err = s.bus.Call(ctx, "com.discord.update_voice_state", bus.Message{
		Args: []any{guildID, channelID},
	})
	return bus.Message{}, err
}

// handleDisconnect forwards to the same voice-gateway peer with no
// channel_id, per `component.py`'s disconnect. As with connect, the real
// Player.OnDisconnect fires from the Correlator once the corresponding
// voice_state_update (with no channel) arrives.
func (s *Server) handleDisconnect(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}

	_, err = s.bus.Call(ctx, "com.discord.update_voice_state", bus.Message{
		Args: []any{guildID},
	})
	return bus.Message{}, err
}

func (s *Server) handleQueue(ctx context.Context, msg bus.Message) (bus.Message, error) {
	return s.handlePage(ctx, msg, func(p *player.Player, page, eps int64) ([]entry.Entry, error) {
		return p.Queue(ctx, page, eps)
	})
}

func (s *Server) handleHistory(ctx context.Context, msg bus.Message) (bus.Message, error) {
	return s.handlePage(ctx, msg, func(p *player.Player, page, eps int64) ([]entry.Entry, error) {
		return p.History(ctx, page, eps)
	})
}

func (s *Server) handlePage(ctx context.Context, msg bus.Message, read func(*player.Player, int64, int64) ([]entry.Entry, error)) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	page, err := argInt64(msg.Args, 1, "page")
	if err != nil {
		return bus.Message{}, err
	}
	entriesPerPage, err := optionalInt64(msg.Args, 2, "entries_per_page", defaultEntriesPerPage)
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	entries, err := read(p, page, entriesPerPage)
	if err != nil {
		return bus.Message{}, err
	}

	dicts := make([]any, len(entries))
	for i, e := range entries {
		dicts[i] = e.AsDict()
	}
	return bus.Message{Args: []any{dicts}}, nil
}

func (s *Server) handleEnqueue(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	eid, err := argString(msg.Args, 1, "eid")
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	e := entry.New(eid, nil)
	if err := p.Enqueue(ctx, e); err != nil {
		return bus.Message{}, err
	}
	return bus.Message{Args: []any{e.Aid}}, nil
}

func (s *Server) handleDequeue(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	aid, err := argString(msg.Args, 1, "aid")
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	removed, err := p.Dequeue(ctx, aid)
	if err != nil {
		return bus.Message{}, err
	}
	return bus.Message{Args: []any{removed}}, nil
}

func (s *Server) handleMove(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	aid, err := argString(msg.Args, 1, "aid")
	if err != nil {
		return bus.Message{}, err
	}
	index, err := argInt64(msg.Args, 2, "index")
	if err != nil {
		return bus.Message{}, err
	}
	whenceStr, err := argString(msg.Args, 3, "whence")
	if err != nil {
		return bus.Message{}, err
	}
	whence, err := store.ParseWhence(whenceStr)
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	moved, err := p.Move(ctx, aid, index, whence)
	if err != nil {
		return bus.Message{}, err
	}
	return bus.Message{Args: []any{moved}}, nil
}

func (s *Server) handlePause(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	paused, err := argBool(msg.Args, 1, "paused")
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	return bus.Message{}, p.Pause(ctx, paused)
}

func (s *Server) handleSetVolume(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	volume, err := argFloat64(msg.Args, 1, "volume")
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	return bus.Message{}, p.SetVolume(ctx, volume)
}

func (s *Server) handleSeek(ctx context.Context, msg bus.Message) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}
	position, err := argFloat64(msg.Args, 1, "position")
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	return bus.Message{}, p.Seek(ctx, position)
}

func (s *Server) handleSkipNext(ctx context.Context, msg bus.Message) (bus.Message, error) {
	return s.withGuildPlayer(ctx, msg, func(p *player.Player) error { return p.Next(ctx) })
}

func (s *Server) handleSkipNextChapter(ctx context.Context, msg bus.Message) (bus.Message, error) {
	return s.withGuildPlayer(ctx, msg, func(p *player.Player) error { return p.NextChapter(ctx) })
}

func (s *Server) handleSkipPrevious(ctx context.Context, msg bus.Message) (bus.Message, error) {
	return s.withGuildPlayer(ctx, msg, func(p *player.Player) error { return p.Previous(ctx) })
}

func (s *Server) handleSkipPreviousChapter(ctx context.Context, msg bus.Message) (bus.Message, error) {
	return s.withGuildPlayer(ctx, msg, func(p *player.Player) error { return p.PreviousChapter(ctx) })
}

func (s *Server) withGuildPlayer(ctx context.Context, msg bus.Message, fn func(*player.Player) error) (bus.Message, error) {
	guildID, err := argUint64(msg.Args, 0, "guild_id")
	if err != nil {
		return bus.Message{}, err
	}

	p := s.manager.Get(guildID)
	defer s.manager.Release(guildID)

	return bus.Message{}, fn(p)
}
