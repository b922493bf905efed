package audionode

import (
	"encoding/base64"

	"github.com/vmihailenco/msgpack/v5"
)

// trackFields is the binary shape packed into a track descriptor. Field
// order and naming are internal to this core; the audio node treats the
// result as opaque.
type trackFields struct {
	Source      string  `msgpack:"source"`
	Identifier  string  `msgpack:"identifier"`
	URI         string  `msgpack:"uri"`
	StartOffset float64 `msgpack:"start_offset"`
	EndOffset   float64 `msgpack:"end_offset"`
	IsLive      bool    `msgpack:"is_live"`
}

// encodeLavaPlayerTrack packs an AudioSource into the msgpack-encoded,
// base64-wrapped descriptor the audio node is handed on play.
func encodeLavaPlayerTrack(src AudioSource) string {
	raw, err := msgpack.Marshal(trackFields{
		Source:      src.Source,
		Identifier:  src.Identifier,
		URI:         src.URI,
		StartOffset: src.StartOffset,
		EndOffset:   src.EndOffset,
		IsLive:      src.IsLive,
	})
	if err != nil {
		// trackFields is a fixed, fully self-contained struct; msgpack
		// marshaling of it cannot fail.
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeTrackDescriptor reverses EncodeTrackDescriptor. Exposed for tests
// and for audio-node bindings that need to introspect what was queued;
// the Player itself never calls this.
func DecodeTrackDescriptor(descriptor string) (AudioSource, error) {
	raw, err := base64.StdEncoding.DecodeString(descriptor)
	if err != nil {
		return AudioSource{}, err
	}

	var fields trackFields
	if err := msgpack.Unmarshal(raw, &fields); err != nil {
		return AudioSource{}, err
	}
	return AudioSource{
		Source:      fields.Source,
		Identifier:  fields.Identifier,
		URI:         fields.URI,
		StartOffset: fields.StartOffset,
		EndOffset:   fields.EndOffset,
		IsLive:      fields.IsLive,
	}, nil
}
