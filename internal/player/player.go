// Package player implements the per-guild player state machine: queue and
// history management, connection and playback state, and the command
// surface a bus server dispatches RPCs into.
package player

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hiqty/ari/internal/apperror"
	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/entry"
	"github.com/hiqty/ari/internal/events"
	"github.com/hiqty/ari/internal/metadata"
	"github.com/hiqty/ari/internal/playerstate"
	"github.com/hiqty/ari/internal/store"
)

const defaultVolume = 1.0

// Player is the per-guild state machine. It owns two OrderedEntryStores
// (queue, history), one PlayerStateStore, and references to the shared
// audio-node client and (optionally) the metadata client. A per-guild
// mutex serializes commands so invariant P3 (a track-end notification
// always precedes the next Play for the same player) holds even though
// the bus dispatcher and the voice correlator call in from independent
// goroutines.
type Player struct {
	GuildID uint64

	queue   store.Store
	history store.Store
	state   *playerstate.Store

	audioNode audionode.Client
	metadata  metadata.Client

	bus *events.Bus

	mu sync.Mutex
}

// New builds a Player for guildID. metadataClient may be nil; chapter
// stepping falls back to plain next/previous when it is.
func New(guildID uint64, queue, history store.Store, state *playerstate.Store, audioNode audionode.Client, metadataClient metadata.Client) *Player {
	return &Player{
		GuildID:   guildID,
		queue:     queue,
		history:   history,
		state:     state,
		audioNode: audioNode,
		metadata:  metadataClient,
		bus:       events.NewBus(),
	}
}

// Events returns the player's private event bus. The manager subscribes a
// forwarding handler here that republishes each event unchanged onto the
// process-wide bus; the event itself carries the guild id.
func (p *Player) Events() *events.Bus { return p.bus }

func (p *Player) emit(ev events.Event) { p.bus.Publish(ev) }

// Queue returns entries_per_page entries of the queue starting at page
// (zero-indexed), per spec.md §6's "page × eps [start, start+eps)".
func (p *Player) Queue(ctx context.Context, page, entriesPerPage int64) ([]entry.Entry, error) {
	return pageOf(ctx, p.queue, page, entriesPerPage)
}

// History returns entries_per_page entries of the history starting at
// page, same pagination convention as Queue.
func (p *Player) History(ctx context.Context, page, entriesPerPage int64) ([]entry.Entry, error) {
	return pageOf(ctx, p.history, page, entriesPerPage)
}

func pageOf(ctx context.Context, s store.Store, page, entriesPerPage int64) ([]entry.Entry, error) {
	start := page * entriesPerPage
	stop := start + entriesPerPage
	return s.Slice(ctx, &start, &stop, nil)
}

// OnConnect marks the player connected to channelID, emits Connect, and
// then runs update (resuming paused playback, or auto-advancing onto a
// non-empty queue) — matching spec.md §8 scenario 6, where Connect
// precedes the QueueRemove/Play/PlayUpdate triggered by the auto-advance.
func (p *Player) OnConnect(ctx context.Context, channelID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.SetConnected(ctx, true); err != nil {
		return err
	}
	p.emit(events.NewConnect(p.GuildID, &channelID))
	return p.updateLocked(ctx, true)
}

// OnDisconnect clears connection state, the cached voice-server update,
// pauses the node, and emits Connect(absent).
func (p *Player) OnDisconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.SetConnected(ctx, false); err != nil {
		return err
	}
	if err := p.state.SetVoiceServerUpdate(ctx, nil); err != nil {
		return err
	}
	if err := p.pauseLocked(ctx, true); err != nil {
		return err
	}
	p.emit(events.NewConnect(p.GuildID, nil))
	return nil
}

// OnTrackEnd handles a track-end notification from the audio node.
// mayStartNext mirrors the node's track-end classification: when false,
// the end was not a natural completion (e.g. a replace) and the player
// must not auto-advance.
func (p *Player) OnTrackEnd(ctx context.Context, mayStartNext bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok, err := p.state.GetCurrent(ctx)
	if err != nil {
		return err
	}
	if ok {
		if err := p.history.AddStart(ctx, current); err != nil {
			return err
		}
		p.emit(events.NewHistoryAdd(p.GuildID, current))
	}

	if mayStartNext {
		return p.nextLocked(ctx)
	}
	return nil
}

// Pause tells the audio node to pause or resume and emits Pause then
// PlayUpdate.
func (p *Player) Pause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauseLocked(ctx, paused)
}

func (p *Player) pauseLocked(ctx context.Context, paused bool) error {
	if err := p.audioNode.Pause(ctx, p.GuildID, paused); err != nil {
		return err
	}
	p.emit(events.NewPause(p.GuildID, paused))
	return p.emitPlayUpdateLocked(ctx, paused, nil)
}

// Seek tells the audio node to jump to position and emits Seek then
// PlayUpdate, in that order.
func (p *Player) Seek(ctx context.Context, position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.audioNode.Seek(ctx, p.GuildID, position); err != nil {
		return err
	}
	p.emit(events.NewSeek(p.GuildID, position))

	paused, err := p.cachedPausedLocked(ctx)
	if err != nil {
		return err
	}
	return p.emitPlayUpdateLocked(ctx, paused, &position)
}

// Stop tells the audio node to stop and clears the queue concurrently,
// then emits Stop.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.audioNode.Stop(gctx, p.GuildID) })
	g.Go(func() error { return p.queue.Clear(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	p.emit(events.NewStop(p.GuildID))
	return nil
}

// SetVolume reads the cached volume (defaulting to 1.0 when absent),
// tells the audio node the new value, and emits VolumeChange.
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, err := p.cachedVolumeLocked(ctx)
	if err != nil {
		return err
	}
	if err := p.audioNode.Volume(ctx, p.GuildID, volume); err != nil {
		return err
	}
	p.emit(events.NewVolumeChange(p.GuildID, old, volume))
	return nil
}

// Enqueue appends entry to the queue, emits QueueAdd, then runs update.
func (p *Player) Enqueue(ctx context.Context, e entry.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.queue.AddEnd(ctx, e); err != nil {
		return err
	}
	position, err := p.queue.IndexOf(ctx, e.Aid)
	if err != nil {
		return err
	}
	p.emit(events.NewQueueAdd(p.GuildID, e, position))
	return p.updateLocked(ctx, false)
}

// Dequeue removes aid from the queue. Returns false if aid wasn't
// present, without emitting anything.
func (p *Player) Dequeue(ctx context.Context, aid string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok, err := p.queue.GetByAid(ctx, aid)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	removed, err := p.queue.Remove(ctx, aid)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	p.emit(events.NewQueueRemove(p.GuildID, e))
	return true, nil
}

// Move relocates aid within the queue. Returns false if aid or the pivot
// position doesn't exist, without emitting anything.
func (p *Player) Move(ctx context.Context, aid string, index int64, whence store.Whence) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok, err := p.queue.GetByAid(ctx, aid)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	moved, err := p.queue.Move(ctx, aid, index, whence)
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}

	settled, err := p.queue.IndexOf(ctx, aid)
	if err != nil {
		return false, err
	}
	p.emit(events.NewQueueMove(p.GuildID, e, settled))
	return true, nil
}

// Next pops the queue's first entry, emits QueueRemove if one was
// popped, and plays it (or silence, if the queue was empty).
func (p *Player) Next(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextLocked(ctx)
}

func (p *Player) nextLocked(ctx context.Context) error {
	popped, ok, err := p.queue.PopStart(ctx)
	if err != nil {
		return err
	}
	if ok {
		p.emit(events.NewQueueRemove(p.GuildID, popped))
		return p.playLocked(ctx, &popped)
	}
	return p.playLocked(ctx, nil)
}

// Previous pops the history's first entry, emits HistoryRemove if one
// was popped, pushes the current entry (if any) back onto the front of
// the queue, and plays the popped history entry (or silence).
func (p *Player) Previous(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.previousLocked(ctx)
}

func (p *Player) previousLocked(ctx context.Context) error {
	popped, poppedOK, err := p.history.PopStart(ctx)
	if err != nil {
		return err
	}
	if poppedOK {
		p.emit(events.NewHistoryRemove(p.GuildID, popped))
	}

	current, hasCurrent, err := p.state.GetCurrent(ctx)
	if err != nil {
		return err
	}
	if hasCurrent {
		if err := p.queue.AddStart(ctx, current); err != nil {
			return err
		}
		p.emit(events.NewQueueAdd(p.GuildID, current, 0))
	}

	if poppedOK {
		return p.playLocked(ctx, &popped)
	}
	return p.playLocked(ctx, nil)
}

// NextChapter asks the metadata service for chapter boundaries on the
// currently playing entry; when none are available it falls back to
// Next.
func (p *Player) NextChapter(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stepChapterLocked(ctx, p.nextLocked)
}

// PreviousChapter is the PreviousChapter counterpart of NextChapter.
func (p *Player) PreviousChapter(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stepChapterLocked(ctx, p.previousLocked)
}

func (p *Player) stepChapterLocked(ctx context.Context, fallback func(context.Context) error) error {
	current, ok, err := p.state.GetCurrent(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fallback(ctx)
	}

	chapters, err := metadata.ChaptersFor(ctx, p.metadata, current.Eid)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		return fallback(ctx)
	}

	// TODO: seeking within the current track to the next/previous chapter
	// boundary is not implemented — the metadata contract doesn't yet
	// specify whether chapter boundaries are timestamps or sub-track ids.
	return fallback(ctx)
}

// RecoverState replays the cached voice-server update (if any) to the
// audio node, then runs update to reconcile the cached connection/
// playback state after a process restart.
func (p *Player) RecoverState(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	voiceUpdate, ok, err := p.state.GetVoiceServerUpdate(ctx)
	if err != nil {
		return err
	}
	if ok {
		sessionID, _ := voiceUpdate["session_id"].(string)
		if err := p.audioNode.VoiceServerUpdate(ctx, audionode.VoiceServerUpdate{
			GuildID:   p.GuildID,
			SessionID: sessionID,
			Raw:       voiceUpdate,
		}); err != nil {
			return err
		}
	}

	return p.updateLocked(ctx, false)
}

// play is the internal helper backing Next/Previous/RecoverState: when e
// is nil it stops the node and clears current; otherwise it resolves the
// entry via the metadata client, synthesizes a track descriptor, tells
// the node to play it, and caches the new current entry.
func (p *Player) playLocked(ctx context.Context, e *entry.Entry) error {
	if e == nil {
		if err := p.audioNode.Stop(ctx, p.GuildID); err != nil {
			return err
		}
		if err := p.state.SetCurrent(ctx, nil); err != nil {
			return err
		}
		p.emit(events.NewPlay(p.GuildID, nil, false, 0))
		return p.emitPlayUpdateLocked(ctx, false, nil)
	}

	source, err := p.metadata.Resolve(ctx, e.Eid)
	if err != nil {
		return apperror.NewUnreachable("resolve eid %s: %v", e.Eid, err)
	}
	track := audionode.EncodeTrackDescriptor(source)

	if err := p.audioNode.Play(ctx, p.GuildID, track, source.StartOffset, source.EndOffset); err != nil {
		return err
	}
	if err := p.state.SetCurrent(ctx, e); err != nil {
		return err
	}

	p.emit(events.NewPlay(p.GuildID, e, false, 0))
	return p.emitPlayUpdateLocked(ctx, false, nil)
}

// update fetches (connected, paused, current, audio_player_snapshot) and
// reconciles the cached state with what the player command surface
// expects: resumed playback after reconnecting, or auto-advance when
// connected with nothing queued to play and not paused.
func (p *Player) updateLocked(ctx context.Context, resume bool) error {
	var connected, paused, hasCurrent, hasSnapshot bool
	var snapshot audionode.PlayerView

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		connected, err = p.state.GetConnected(gctx)
		return err
	})
	g.Go(func() (err error) {
		_, hasCurrent, err = p.state.GetCurrent(gctx)
		return err
	})
	g.Go(func() (err error) {
		snapshot, hasSnapshot, err = p.state.GetPlayerSnapshot(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if hasSnapshot {
		paused, _ = snapshot["paused"].(bool)
		if _, hasPosition := snapshot["position"]; !hasPosition {
			hasCurrent = false
		}
	}

	switch {
	case resume && connected && paused:
		return p.pauseLocked(ctx, false)
	case connected && !hasCurrent && !paused:
		return p.nextLocked(ctx)
	default:
		return nil
	}
}

func (p *Player) emitPlayUpdateLocked(ctx context.Context, paused bool, position *float64) error {
	current, ok, err := p.state.GetCurrent(ctx)
	if err != nil {
		return err
	}
	var e *entry.Entry
	if ok {
		e = &current
	}
	p.emit(events.NewPlayUpdate(p.GuildID, e, paused, position))
	return nil
}

func (p *Player) cachedPausedLocked(ctx context.Context) (bool, error) {
	snapshot, ok, err := p.state.GetPlayerSnapshot(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	paused, _ := snapshot["paused"].(bool)
	return paused, nil
}

func (p *Player) cachedVolumeLocked(ctx context.Context) (float64, error) {
	snapshot, ok, err := p.state.GetPlayerSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultVolume, nil
	}
	if v, ok := snapshot["volume"].(float64); ok {
		return v, nil
	}
	return defaultVolume, nil
}
