package store

import "github.com/hiqty/ari/internal/apperror"

// Whence controls how a move target index is interpreted.
type Whence int

const (
	// Absolute means the entry ends up at the given position.
	Absolute Whence = iota
	// Before means the entry is placed immediately before the entry
	// currently at the given position.
	Before
	// After means the entry is placed immediately after the entry
	// currently at the given position.
	After
)

// String renders the whence the way the move Lua script expects it.
func (w Whence) String() string {
	switch w {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "absolute"
	}
}

// ParseWhence parses the wire-level whence string used by the move RPC.
func ParseWhence(s string) (Whence, error) {
	switch s {
	case "absolute":
		return Absolute, nil
	case "before":
		return Before, nil
	case "after":
		return After, nil
	default:
		return 0, apperror.NewInvalidArgumentWithValues(
			"invalid whence: "+s, "absolute", "before", "after")
	}
}
