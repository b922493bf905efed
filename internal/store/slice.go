package store

import (
	"context"

	"github.com/hiqty/ari/internal/apperror"
	"github.com/hiqty/ari/internal/entry"
)

// normalizeSliceBound resolves a single nilable, possibly-negative slice
// bound against length the way Python's slice.indices() does for the
// "start" and "stop" positions: nil takes the default, negative values
// count from the end, and the result is clamped to [0, length] (the stop
// side of a half-open range may legitimately equal length).
func normalizeSliceBound(v *int64, def, length int64) int64 {
	if v == nil {
		return def
	}
	n := *v
	if n < 0 {
		n += length
		if n < 0 {
			n = 0
		}
	}
	if n > length {
		n = length
	}
	return n
}

// pyRange enumerates the indices Python's range(start, stop, step) would
// produce. step must be non-zero; the caller (Slice) enforces this.
func pyRange(start, stop, step int64) []int64 {
	var out []int64
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out
}

// Slice implements Python-style slicing: store[start:stop:step]. Unlike
// the original implementation's Lua-backed GET_ENTRIES (which only ever
// reverses the range on step<0 and never subsamples for |step|>1), this
// walks the exact index sequence range(start,stop,step) would produce, so
// it is correct for arbitrary non-zero step magnitudes.
func (s *RedisStore) Slice(ctx context.Context, start, stop, step *int64) ([]entry.Entry, error) {
	stepVal := int64(1)
	if step != nil {
		stepVal = *step
	}
	if stepVal == 0 {
		return nil, apperror.NewInvalidArgument("slice step must not be zero")
	}

	length, err := s.Length(ctx)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	var startDef, stopDef int64
	if stepVal > 0 {
		startDef, stopDef = 0, length
	} else {
		startDef, stopDef = length-1, -1
	}

	startIdx := startDef
	if start != nil {
		startIdx = normalizeSliceBound(start, startDef, length)
		if stepVal < 0 && startIdx == length {
			startIdx = length - 1
		}
		if stepVal < 0 && *start < -length {
			startIdx = -1
		}
	}
	stopIdx := stopDef
	if stop != nil {
		stopIdx = normalizeSliceBound(stop, stopDef, length)
		if stepVal < 0 && *stop < -length {
			stopIdx = -1
		}
	}

	indices := pyRange(startIdx, stopIdx, stepVal)
	if len(indices) == 0 {
		return nil, nil
	}

	lo, hi := indices[0], indices[0]
	for _, i := range indices {
		if i < lo {
			lo = i
		}
		if i > hi {
			hi = i
		}
	}

	raw, err := s.redis.LRange(ctx, s.orderKey, lo, hi).Result()
	if err != nil {
		return nil, wrapTransient(err)
	}

	aids := make([]string, 0, len(indices))
	for _, i := range indices {
		aids = append(aids, raw[i-lo])
	}

	if len(aids) == 0 {
		return nil, nil
	}

	infos, err := s.redis.HMGet(ctx, s.infoKey, aids...).Result()
	if err != nil {
		return nil, wrapTransient(err)
	}

	entries := make([]entry.Entry, 0, len(aids))
	for i, aid := range aids {
		raw, ok := infos[i].(string)
		if !ok {
			return nil, apperror.NewUnreachable("entry %s missing from info hash", aid)
		}
		e, err := entry.DecodePayload(aid, []byte(raw))
		if err != nil {
			return nil, apperror.NewUnreachable("decode entry %s: %v", aid, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
