package entry

import (
	"github.com/vmihailenco/msgpack/v5"
)

// payload is the on-the-wire shape stored in an OrderedEntryStore's info
// hash: the aid itself lives as the hash field name, so only (eid, meta)
// needs encoding.
type payload struct {
	Eid  string         `msgpack:"eid"`
	Meta map[string]any `msgpack:"meta,omitempty"`
}

// EncodePayload binary-encodes the (eid, meta) pair for storage in a
// store's info hash. aid is stored separately, as the raw UTF-8 hash field
// name.
func EncodePayload(e Entry) ([]byte, error) {
	return msgpack.Marshal(payload{Eid: e.Eid, Meta: e.Meta})
}

// DecodePayload reconstructs an Entry from its aid (the hash field name)
// and the binary-encoded payload.
func DecodePayload(aid string, raw []byte) (Entry, error) {
	var p payload
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return Entry{}, err
	}
	return Entry{Aid: aid, Eid: p.Eid, Meta: p.Meta}, nil
}
