package player

import (
	"context"

	"github.com/hiqty/ari/internal/apperror"
	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/entry"
	"github.com/hiqty/ari/internal/metadata"
	"github.com/hiqty/ari/internal/store"
)

// fakeStore is an in-memory store.Store good enough to drive Player
// command tests without a Redis dependency; it does not implement the
// full Python-style slice semantics internal/store's real backend does.
type fakeStore struct {
	order []entry.Entry
}

func (s *fakeStore) Length(context.Context) (int64, error) { return int64(len(s.order)), nil }

func (s *fakeStore) GetByIndex(_ context.Context, index int64) (entry.Entry, bool, error) {
	if index < 0 || index >= int64(len(s.order)) {
		return entry.Entry{}, false, nil
	}
	return s.order[index], true, nil
}

func (s *fakeStore) GetByAid(_ context.Context, aid string) (entry.Entry, bool, error) {
	for _, e := range s.order {
		if e.Aid == aid {
			return e, true, nil
		}
	}
	return entry.Entry{}, false, nil
}

func (s *fakeStore) Slice(context.Context, *int64, *int64, *int64) ([]entry.Entry, error) {
	return append([]entry.Entry(nil), s.order...), nil
}

func (s *fakeStore) IndexOf(_ context.Context, aid string) (int64, error) {
	for i, e := range s.order {
		if e.Aid == aid {
			return int64(i), nil
		}
	}
	return 0, apperror.NewNotFound("aid %s not in store", aid)
}

func (s *fakeStore) AddStart(_ context.Context, e entry.Entry) error {
	s.order = append([]entry.Entry{e}, s.order...)
	return nil
}

func (s *fakeStore) AddEnd(_ context.Context, e entry.Entry) error {
	s.order = append(s.order, e)
	return nil
}

func (s *fakeStore) PopStart(context.Context) (entry.Entry, bool, error) {
	if len(s.order) == 0 {
		return entry.Entry{}, false, nil
	}
	e := s.order[0]
	s.order = s.order[1:]
	return e, true, nil
}

func (s *fakeStore) PopEnd(context.Context) (entry.Entry, bool, error) {
	if len(s.order) == 0 {
		return entry.Entry{}, false, nil
	}
	e := s.order[len(s.order)-1]
	s.order = s.order[:len(s.order)-1]
	return e, true, nil
}

func (s *fakeStore) Remove(_ context.Context, aid string) (bool, error) {
	for i, e := range s.order {
		if e.Aid == aid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Move(context.Context, string, int64, store.Whence) (bool, error) {
	return false, nil
}

func (s *fakeStore) Shuffle(context.Context, *int64) error { return nil }

func (s *fakeStore) Clear(context.Context) error {
	s.order = nil
	return nil
}

// fakeAudioNode records every call it receives.
type fakeAudioNode struct {
	calls []string

	playedTrack string
}

func (f *fakeAudioNode) Play(_ context.Context, _ uint64, track string, _, _ float64) error {
	f.calls = append(f.calls, "play")
	f.playedTrack = track
	return nil
}

func (f *fakeAudioNode) Stop(context.Context, uint64) error {
	f.calls = append(f.calls, "stop")
	return nil
}

func (f *fakeAudioNode) Pause(_ context.Context, _ uint64, paused bool) error {
	if paused {
		f.calls = append(f.calls, "pause:true")
	} else {
		f.calls = append(f.calls, "pause:false")
	}
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

// fakeMetadata resolves every eid to a trivial AudioSource and reports no
// chapters, matching the metadata contract's "ChaptersFor nil client or
// no chapters" fallback path.
type fakeMetadata struct{}

func (fakeMetadata) Resolve(_ context.Context, eid string) (audionode.AudioSource, error) {
	return audionode.AudioSource{Source: "fake", Identifier: eid}, nil
}

func (fakeMetadata) TrackInfoFor(_ context.Context, eid string) (metadata.TrackInfo, bool, error) {
	return metadata.TrackInfo{Eid: eid}, true, nil
}

var (
	_ store.Store      = (*fakeStore)(nil)
	_ audionode.Client = (*fakeAudioNode)(nil)
	_ metadata.Client  = fakeMetadata{}
)
