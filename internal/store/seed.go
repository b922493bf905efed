package store

import "math/rand/v2"

// newShuffleSeed generates an arbitrary seed for Shuffle when the caller
// doesn't supply one explicitly.
func newShuffleSeed() int64 {
	return int64(rand.Uint64() >> 1)
}
