// Package entry defines the immutable Entry value type shared by every
// OrderedEntryStore.
package entry

import (
	"strings"

	"github.com/google/uuid"
)

// Entry is an immutable queue/history element. Two entries are equal iff
// their Aid matches; Aid is the primary key within any single
// OrderedEntryStore.
type Entry struct {
	// Aid is the Ari entry id: a 128-bit random identifier encoded as 32
	// hex chars.
	Aid string
	// Eid is the opaque external (metadata service) track id.
	Eid string
	// Meta is an optional free-form mapping from string to arbitrary
	// JSON-compatible value.
	Meta map[string]any
}

// New builds an Entry with a freshly minted aid.
func New(eid string, meta map[string]any) Entry {
	return Entry{Aid: NewAid(), Eid: eid, Meta: meta}
}

// NewAid creates a new, unique ari entry id: a v4 UUID with its dashes
// stripped, the same scheme the original implementation uses
// (uuid.uuid4().hex).
func NewAid() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AsDict renders the entry in the wire format used by the RPC surface:
// {aid, eid, meta?} with meta omitted when empty.
func (e Entry) AsDict() map[string]any {
	d := map[string]any{"aid": e.Aid, "eid": e.Eid}
	if len(e.Meta) > 0 {
		d["meta"] = e.Meta
	}
	return d
}

// Equal reports whether two entries share the same aid.
func (e Entry) Equal(other Entry) bool {
	return e.Aid == other.Aid
}
