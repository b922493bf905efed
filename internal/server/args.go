package server

import (
	"strconv"

	"github.com/hiqty/ari/internal/apperror"
)

func argAt(args []any, i int, name string) (any, error) {
	if i >= len(args) {
		return nil, apperror.NewInvalidArgument("missing argument %s (position %d)", name, i)
	}
	return args[i], nil
}

// argUint64 accepts both a JSON-decoded number and a decimal string: the
// glossary specifies ids as "64-bit integer rendered as decimal string at
// the bus boundary" (Discord snowflakes exceed float64's 53-bit mantissa
// and lose precision if ever carried as a JSON number).
func argUint64(args []any, i int, name string) (uint64, error) {
	v, err := argAt(args, i, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case uint64:
		return n, nil
	case string:
		parsed, parseErr := strconv.ParseUint(n, 10, 64)
		if parseErr != nil {
			return 0, apperror.NewInvalidArgument("argument %s: invalid decimal id %q", name, n)
		}
		return parsed, nil
	default:
		return 0, apperror.NewInvalidArgument("argument %s: expected a number or decimal string, got %T", name, v)
	}
}

func argInt64(args []any, i int, name string) (int64, error) {
	v, err := argAt(args, i, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, apperror.NewInvalidArgument("argument %s: expected a number, got %T", name, v)
	}
}

func argFloat64(args []any, i int, name string) (float64, error) {
	v, err := argAt(args, i, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, apperror.NewInvalidArgument("argument %s: expected a number, got %T", name, v)
	}
}

func argString(args []any, i int, name string) (string, error) {
	v, err := argAt(args, i, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", apperror.NewInvalidArgument("argument %s: expected a string, got %T", name, v)
	}
	return s, nil
}

func argBool(args []any, i int, name string) (bool, error) {
	v, err := argAt(args, i, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, apperror.NewInvalidArgument("argument %s: expected a bool, got %T", name, v)
	}
	return b, nil
}

// optionalInt64 returns def when args has no element at i, mirroring the
// RPC surface's entries_per_page=50 default (spec.md §6).
func optionalInt64(args []any, i int, name string, def int64) (int64, error) {
	if i >= len(args) {
		return def, nil
	}
	return argInt64(args, i, name)
}
