// Package metadata defines the thin contract the core depends on for
// resolving an Entry's opaque eid into a playable AudioSource and, where
// available, its chapter boundaries. Track metadata synthesis itself is
// explicitly out of the core's scope — it's delegated to this service.
package metadata

import (
	"context"

	"github.com/hiqty/ari/internal/audionode"
)

// TrackInfo is what the metadata service knows about an eid beyond what's
// needed to play it: used by NextChapter/PreviousChapter to decide
// whether chapter stepping applies at all.
type TrackInfo struct {
	Eid      string
	Title    string
	Chapters []Chapter
}

// Chapter is a named offset within a track.
type Chapter struct {
	Title string
	Start float64
}

// Client is the contract the core depends on for metadata resolution.
type Client interface {
	// Resolve turns an eid into a playable AudioSource.
	Resolve(ctx context.Context, eid string) (audionode.AudioSource, error)
	// TrackInfoFor returns what's known about eid, or ok=false if the
	// service has nothing on file for it.
	TrackInfoFor(ctx context.Context, eid string) (info TrackInfo, ok bool, err error)
}

// ChaptersFor returns the chapter list for eid, or nil if the client is
// unset or the track carries no chapter information. Player.NextChapter/
// PreviousChapter use this to decide whether to fall back to plain
// Next/Previous.
func ChaptersFor(ctx context.Context, client Client, eid string) ([]Chapter, error) {
	if client == nil {
		return nil, nil
	}

	info, ok, err := client.TrackInfoFor(ctx, eid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return info.Chapters, nil
}
