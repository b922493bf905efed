// Package events defines the player event taxonomy and the in-process bus
// that fans them out to subscribers.
package events

import (
	"strconv"

	"github.com/hiqty/ari/internal/entry"
)

// Event is the common interface every player event variant implements. It
// mirrors the original implementation's AriEvent: a URI naming the event
// kind plus positional and keyword argument views used when publishing
// onto the external RPC/pub-sub bus.
type Event interface {
	// URI is the wire-level event name, e.g. "on_play".
	URI() string
	// GuildID is the guild this event concerns.
	GuildID() uint64
	// Args returns the positional arguments to publish, guild id first.
	Args() []any
	// Kwargs returns the keyword arguments to publish, if any.
	Kwargs() map[string]any
}

// base carries the guild id shared by every event variant.
type base struct {
	Guild uint64
}

func (b base) GuildID() uint64 { return b.Guild }

// guildArg renders the guild id as the decimal string the glossary
// mandates for 64-bit ids at the bus boundary, so a snowflake beyond
// float64's 53-bit mantissa survives a JSON round-trip intact.
func (b base) guildArg() any { return strconv.FormatUint(b.Guild, 10) }

// Connect is emitted after on_connect or on_disconnect. ChannelID is nil
// when the player has just disconnected.
type Connect struct {
	base
	ChannelID *uint64
}

func (Connect) URI() string { return "on_connect" }

func (e Connect) Args() []any {
	var channelID any
	if e.ChannelID != nil {
		channelID = *e.ChannelID
	}
	return []any{e.guildArg(), channelID}
}

func (Connect) Kwargs() map[string]any { return nil }

// PlayUpdate is emitted after any state change that alters the playing
// view: entry, paused and position are each optional (nil when absent).
type PlayUpdate struct {
	base
	Entry    *entry.Entry
	Paused   bool
	Position *float64
}

func (PlayUpdate) URI() string { return "on_play_update" }

func (e PlayUpdate) Args() []any { return []any{e.guildArg()} }

func (e PlayUpdate) Kwargs() map[string]any {
	var entryDict any
	if e.Entry != nil {
		entryDict = e.Entry.AsDict()
	}
	return map[string]any{
		"entry":    entryDict,
		"paused":   e.Paused,
		"position": e.Position,
	}
}

// Play is emitted whenever playback transitions to a new entry (or to
// silence, when Entry is nil).
type Play struct {
	base
	Entry    *entry.Entry
	Paused   bool
	Progress float64
}

func (Play) URI() string { return "on_play" }

func (e Play) Args() []any {
	var entryDict any
	if e.Entry != nil {
		entryDict = e.Entry.AsDict()
	}
	return []any{e.guildArg(), entryDict}
}

func (e Play) Kwargs() map[string]any {
	return map[string]any{"paused": e.Paused, "progress": e.Progress}
}

// Pause is emitted on every pause state toggle.
type Pause struct {
	base
	Paused bool
}

func (Pause) URI() string { return "on_pause" }

func (e Pause) Args() []any { return []any{e.guildArg(), e.Paused} }

func (Pause) Kwargs() map[string]any { return nil }

// Seek is emitted on seek, always immediately before a PlayUpdate.
type Seek struct {
	base
	Position float64
}

func (Seek) URI() string { return "on_seek" }

func (e Seek) Args() []any { return []any{e.guildArg(), e.Position} }

func (Seek) Kwargs() map[string]any { return nil }

// VolumeChange is emitted on set_volume.
type VolumeChange struct {
	base
	Old, New float64
}

func (VolumeChange) URI() string { return "on_volume_change" }

func (e VolumeChange) Args() []any { return []any{e.guildArg(), e.Old, e.New} }

func (VolumeChange) Kwargs() map[string]any { return nil }

// Stop is emitted on stop.
type Stop struct {
	base
}

func (Stop) URI() string { return "on_stop" }

func (e Stop) Args() []any { return []any{e.guildArg()} }

func (Stop) Kwargs() map[string]any { return nil }

// QueueAdd is emitted on enqueue (or prepend from previous), carrying the
// settled queue position of entry.
type QueueAdd struct {
	base
	Entry    entry.Entry
	Position int64
}

func (QueueAdd) URI() string { return "on_queue_add" }

func (e QueueAdd) Args() []any { return []any{e.guildArg(), e.Entry.AsDict()} }

func (e QueueAdd) Kwargs() map[string]any {
	return map[string]any{"position": e.Position}
}

// QueueRemove is emitted on dequeue or when an entry is popped to play.
type QueueRemove struct {
	base
	Entry entry.Entry
}

func (QueueRemove) URI() string { return "on_queue_remove" }

func (e QueueRemove) Args() []any { return []any{e.guildArg(), e.Entry.AsDict()} }

func (QueueRemove) Kwargs() map[string]any { return nil }

// QueueMove is emitted on a successful move, carrying the settled
// absolute position.
type QueueMove struct {
	base
	Entry    entry.Entry
	Position int64
}

func (QueueMove) URI() string { return "on_queue_move" }

func (e QueueMove) Args() []any { return []any{e.guildArg(), e.Entry.AsDict()} }

func (e QueueMove) Kwargs() map[string]any {
	return map[string]any{"position": e.Position}
}

// HistoryAdd is emitted on track end, before advancing to the next entry.
type HistoryAdd struct {
	base
	Entry entry.Entry
}

func (HistoryAdd) URI() string { return "on_history_add" }

func (e HistoryAdd) Args() []any { return []any{e.guildArg(), e.Entry.AsDict()} }

func (HistoryAdd) Kwargs() map[string]any { return nil }

// HistoryRemove is emitted on previous.
type HistoryRemove struct {
	base
	Entry entry.Entry
}

func (HistoryRemove) URI() string { return "on_history_remove" }

func (e HistoryRemove) Args() []any { return []any{e.guildArg(), e.Entry.AsDict()} }

func (HistoryRemove) Kwargs() map[string]any { return nil }

// NewConnect, NewPlayUpdate, ... build each variant with its guild id
// pre-filled, matching the call sites in internal/player.

func NewConnect(guildID uint64, channelID *uint64) Connect {
	return Connect{base: base{guildID}, ChannelID: channelID}
}

func NewPlayUpdate(guildID uint64, e *entry.Entry, paused bool, position *float64) PlayUpdate {
	return PlayUpdate{base: base{guildID}, Entry: e, Paused: paused, Position: position}
}

func NewPlay(guildID uint64, e *entry.Entry, paused bool, progress float64) Play {
	return Play{base: base{guildID}, Entry: e, Paused: paused, Progress: progress}
}

func NewPause(guildID uint64, paused bool) Pause {
	return Pause{base: base{guildID}, Paused: paused}
}

func NewSeek(guildID uint64, position float64) Seek {
	return Seek{base: base{guildID}, Position: position}
}

func NewVolumeChange(guildID uint64, old, new float64) VolumeChange {
	return VolumeChange{base: base{guildID}, Old: old, New: new}
}

func NewStop(guildID uint64) Stop {
	return Stop{base: base{guildID}}
}

func NewQueueAdd(guildID uint64, e entry.Entry, position int64) QueueAdd {
	return QueueAdd{base: base{guildID}, Entry: e, Position: position}
}

func NewQueueRemove(guildID uint64, e entry.Entry) QueueRemove {
	return QueueRemove{base: base{guildID}, Entry: e}
}

func NewQueueMove(guildID uint64, e entry.Entry, position int64) QueueMove {
	return QueueMove{base: base{guildID}, Entry: e, Position: position}
}

func NewHistoryAdd(guildID uint64, e entry.Entry) HistoryAdd {
	return HistoryAdd{base: base{guildID}, Entry: e}
}

func NewHistoryRemove(guildID uint64, e entry.Entry) HistoryRemove {
	return HistoryRemove{base: base{guildID}, Entry: e}
}
