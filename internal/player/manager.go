package player

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/events"
	"github.com/hiqty/ari/internal/metadata"
	"github.com/hiqty/ari/internal/playerstate"
	"github.com/hiqty/ari/internal/store"
)

// recoverConcurrency bounds how many guilds RecoverState rehydrates at
// once, per spec.md §4.7.
const recoverConcurrency = 10

// idleTTL is how long a handle with a zero refcount survives before the
// reaper evicts it — the bounded-registry redesign's answer to the
// original's weakref.WeakValueDictionary (see DESIGN.md's redesign flag).
const idleTTL = 5 * time.Minute

type playerHandle struct {
	player   *Player
	refCount int64
	idleFrom atomic.Value // time.Time, set when refCount drops to zero
}

// Manager owns the Redis handle, the shared audio-node client, a
// configurable key prefix, and a bounded registry of live Players keyed
// by guild. At most one live Player exists per guild at any instant.
type Manager struct {
	redis     redis.UniversalClient
	prefix    string
	audioNode audionode.Client
	metadata  metadata.Client
	bus       *events.Bus
	rs        *redsync.Redsync

	mu      sync.Mutex
	handles map[uint64]*playerHandle
}

// NewManager builds a Manager. bus is the process-wide in-process event
// bus every player's events are republished onto unchanged; each event
// carries its own guild id.
func NewManager(client redis.UniversalClient, prefix string, audioNode audionode.Client, metadataClient metadata.Client, bus *events.Bus) *Manager {
	m := &Manager{
		redis:     client,
		prefix:    prefix,
		audioNode: audioNode,
		metadata:  metadataClient,
		bus:       bus,
		rs:        redsync.New(goredis.NewPool(client)),
		handles:   make(map[uint64]*playerHandle),
	}
	return m
}

func (m *Manager) connectedPlayersKey() string { return m.prefix + ":connected_players" }

func (m *Manager) playerKey(guildID uint64) string { return fmt.Sprintf("%s:%d", m.prefix, guildID) }

func (m *Manager) lockKey(guildID uint64) string { return m.playerKey(guildID) + ":lock" }

// Get returns the live Player for guildID, creating and registering it on
// first access. Callers must call Release when done with the reference.
func (m *Manager) Get(guildID uint64) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[guildID]; ok {
		atomic.AddInt64(&h.refCount, 1)
		return h.player
	}

	key := m.playerKey(guildID)
	queue := store.New(m.redis, key+":queue")
	history := store.New(m.redis, key+":history")
	state := playerstate.New(m.redis, key)

	p := New(guildID, queue, history, state, m.audioNode, m.metadata)
	p.Events().Subscribe(func(ev events.Event) { m.bus.Publish(ev) })

	h := &playerHandle{player: p, refCount: 1}
	m.handles[guildID] = h
	return p
}

// Release drops a reference obtained from Get. Once a handle's refcount
// has been zero for idleTTL, the background reaper evicts it — Redis
// remains the source of truth, so a later Get simply rehydrates.
func (m *Manager) Release(guildID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[guildID]
	if !ok {
		return
	}
	if atomic.AddInt64(&h.refCount, -1) <= 0 {
		h.idleFrom.Store(nowFunc())
	}
}

// RunReaper evicts handles idle past idleTTL until ctx is cancelled. It
// is meant to run as a single background goroutine for the Manager's
// lifetime.
func (m *Manager) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(idleTTL / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapOnce()
		}
	}
}

func (m *Manager) reapOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := nowFunc()
	for guildID, h := range m.handles {
		if atomic.LoadInt64(&h.refCount) > 0 {
			continue
		}
		idleSince, ok := h.idleFrom.Load().(time.Time)
		if !ok || now.Sub(idleSince) < idleTTL {
			continue
		}
		delete(m.handles, guildID)
	}
}

// MarkConnected records guildID in the crash-recovery set. Called by the
// correlator/server layer whenever a player transitions to connected.
func (m *Manager) MarkConnected(ctx context.Context, guildID uint64) error {
	return m.redis.SAdd(ctx, m.connectedPlayersKey(), guildID).Err()
}

// MarkDisconnected removes guildID from the crash-recovery set.
func (m *Manager) MarkDisconnected(ctx context.Context, guildID uint64) error {
	return m.redis.SRem(ctx, m.connectedPlayersKey(), guildID).Err()
}

// RecoverState iterates the connected-players set and calls RecoverState
// on each, bounded to recoverConcurrency concurrent recoveries via a
// weighted semaphore.
func (m *Manager) RecoverState(ctx context.Context) error {
	sem := semaphore.NewWeighted(recoverConcurrency)

	var cursor uint64
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for {
		var guildIDs []string
		var err error
		guildIDs, cursor, err = m.redis.SScan(ctx, m.connectedPlayersKey(), cursor, "", 100).Result()
		if err != nil {
			return err
		}

		for _, raw := range guildIDs {
			guildID, parseErr := parseGuildID(raw)
			if parseErr != nil {
				log.WithField("raw", raw).WithError(parseErr).Warn("skipping malformed connected_players entry")
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				break
			}

			wg.Add(1)
			go func(guildID uint64) {
				defer wg.Done()
				defer sem.Release(1)

				mutex := m.rs.NewMutex(m.lockKey(guildID), redsync.WithExpiry(15*time.Second), redsync.WithTries(1))
				if err := mutex.LockContext(ctx); err != nil {
					log.WithField("guild_id", guildID).WithError(err).Warn("skipping recovery, another process holds the lock")
					return
				}
				defer mutex.UnlockContext(ctx)

				p := m.Get(guildID)
				defer m.Release(guildID)

				if err := p.RecoverState(ctx); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					log.WithField("guild_id", guildID).WithError(err).Error("failed to recover player state")
				}
			}(guildID)
		}

		if cursor == 0 {
			break
		}
	}

	wg.Wait()
	return firstErr
}

func parseGuildID(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

// nowFunc is indirected so tests can stub the reaper's clock.
var nowFunc = time.Now
