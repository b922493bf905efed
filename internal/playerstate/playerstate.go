// Package playerstate implements the small per-player key-value layer:
// connection flag, current entry, and the cached audio-node views a
// player rehydrates itself from after a restart.
package playerstate

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/hiqty/ari/internal/apperror"
	"github.com/hiqty/ari/internal/entry"
)

// Store wraps the PlayerStateStore keys for a single player:
// "<key>:connected", "<key>:current", "<key>:current:andesite:player",
// "<key>:current:andesite:voice", "<key>:current:andesite:track" — laid
// out the way _examples/original_source/ari/player/redis.py's RedisPlayer
// names them, one flat key per scalar.
type Store struct {
	redis redis.Cmdable
	key   string
}

// New builds a Store rooted at key (e.g. "ari:123").
func New(client redis.Cmdable, key string) *Store {
	return &Store{redis: client, key: key}
}

func (s *Store) connectedKey() string { return s.key + ":connected" }
func (s *Store) currentKey() string   { return s.key + ":current" }
func (s *Store) playerKey() string    { return s.key + ":current:andesite:player" }
func (s *Store) voiceKey() string     { return s.key + ":current:andesite:voice" }
func (s *Store) trackKey() string     { return s.key + ":current:andesite:track" }

// GetConnected reports whether the connected flag is set.
func (s *Store) GetConnected(ctx context.Context) (bool, error) {
	n, err := s.redis.Exists(ctx, s.connectedKey()).Result()
	if err != nil {
		return false, apperror.NewTransientStorageWrap(err)
	}
	return n > 0, nil
}

// SetConnected sets or clears the connected flag.
func (s *Store) SetConnected(ctx context.Context, connected bool) error {
	if !connected {
		if err := s.redis.Del(ctx, s.connectedKey()).Err(); err != nil {
			return apperror.NewTransientStorageWrap(err)
		}
		return nil
	}
	if err := s.redis.Set(ctx, s.connectedKey(), "1", 0).Err(); err != nil {
		return apperror.NewTransientStorageWrap(err)
	}
	return nil
}

// GetCurrent returns the currently playing entry, or ok=false if absent
// or if the cached value fails to decode (logged, never propagated).
func (s *Store) GetCurrent(ctx context.Context) (e entry.Entry, ok bool, err error) {
	raw, getErr := s.redis.Get(ctx, s.currentKey()).Bytes()
	if getErr == redis.Nil {
		return entry.Entry{}, false, nil
	}
	if getErr != nil {
		return entry.Entry{}, false, apperror.NewTransientStorageWrap(getErr)
	}

	var payload struct {
		Aid  string         `json:"aid"`
		Eid  string         `json:"eid"`
		Meta map[string]any `json:"meta,omitempty"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.WithError(err).Warn("couldn't decode current entry, treating as absent")
		return entry.Entry{}, false, nil
	}
	return entry.Entry{Aid: payload.Aid, Eid: payload.Eid, Meta: payload.Meta}, true, nil
}

// SetCurrent stores the currently playing entry, or clears the key when e
// is nil.
func (s *Store) SetCurrent(ctx context.Context, e *entry.Entry) error {
	if e == nil {
		if err := s.redis.Del(ctx, s.currentKey()).Err(); err != nil {
			return apperror.NewTransientStorageWrap(err)
		}
		return nil
	}

	raw, err := json.Marshal(struct {
		Aid  string         `json:"aid"`
		Eid  string         `json:"eid"`
		Meta map[string]any `json:"meta,omitempty"`
	}{Aid: e.Aid, Eid: e.Eid, Meta: e.Meta})
	if err != nil {
		return apperror.NewUnreachable("encode current entry: %v", err)
	}
	if err := s.redis.Set(ctx, s.currentKey(), raw, 0).Err(); err != nil {
		return apperror.NewTransientStorageWrap(err)
	}
	return nil
}

// GetPlayerSnapshot returns the cached audio-node player view (volume,
// paused, position, live-position, timestamps) as a raw JSON-decoded map,
// or ok=false if absent or malformed.
func (s *Store) GetPlayerSnapshot(ctx context.Context) (map[string]any, bool, error) {
	return s.getOptionalJSON(ctx, s.playerKey())
}

// SetPlayerSnapshot stores the cached audio-node player view, or clears
// the key when snapshot is nil.
func (s *Store) SetPlayerSnapshot(ctx context.Context, snapshot map[string]any) error {
	return s.setOptionalJSON(ctx, s.playerKey(), snapshot)
}

// GetVoiceServerUpdate returns the cached voice-server update, or
// ok=false if absent or malformed.
func (s *Store) GetVoiceServerUpdate(ctx context.Context) (map[string]any, bool, error) {
	return s.getOptionalJSON(ctx, s.voiceKey())
}

// SetVoiceServerUpdate stores the cached voice-server update, or clears
// the key when update is nil.
func (s *Store) SetVoiceServerUpdate(ctx context.Context, update map[string]any) error {
	return s.setOptionalJSON(ctx, s.voiceKey(), update)
}

// GetTrackDescriptor returns the opaque base64 track descriptor string
// currently cached for the audio node, or ok=false if absent.
func (s *Store) GetTrackDescriptor(ctx context.Context) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.trackKey()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperror.NewTransientStorageWrap(err)
	}
	return v, true, nil
}

// SetTrackDescriptor stores the opaque track descriptor, or clears the
// key when track is nil.
func (s *Store) SetTrackDescriptor(ctx context.Context, track *string) error {
	if track == nil {
		if err := s.redis.Del(ctx, s.trackKey()).Err(); err != nil {
			return apperror.NewTransientStorageWrap(err)
		}
		return nil
	}
	if err := s.redis.Set(ctx, s.trackKey(), *track, 0).Err(); err != nil {
		return apperror.NewTransientStorageWrap(err)
	}
	return nil
}

func (s *Store) getOptionalJSON(ctx context.Context, key string) (map[string]any, bool, error) {
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.NewTransientStorageWrap(err)
	}

	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		log.WithError(err).WithField("key", key).Warn("couldn't decode cached snapshot, treating as absent")
		return nil, false, nil
	}
	return v, true, nil
}

func (s *Store) setOptionalJSON(ctx context.Context, key string, v map[string]any) error {
	if v == nil {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return apperror.NewTransientStorageWrap(err)
		}
		return nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return apperror.NewUnreachable("encode snapshot for %s: %v", key, err)
	}
	if err := s.redis.Set(ctx, key, raw, 0).Err(); err != nil {
		return apperror.NewTransientStorageWrap(err)
	}
	return nil
}
