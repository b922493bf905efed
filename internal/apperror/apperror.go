// Package apperror defines the error taxonomy shared across the ari core.
package apperror

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", Sentinel) or the
// constructors below to attach context while keeping errors.Is/As working.
var (
	// ErrInvalidArgument is caller-facing; it is reported back on the RPC
	// error channel.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is internal, used by index lookups.
	ErrNotFound = errors.New("not found")

	// ErrTransientStorage marks a Redis I/O error. Retried, if at all, by
	// the caller's higher-level supervisor; the core never retries.
	ErrTransientStorage = errors.New("transient storage error")

	// ErrDecode marks a decoding failure for a cached snapshot. Always
	// logged and treated as absence, never propagated as failure.
	ErrDecode = errors.New("decode error")

	// ErrUnreachable marks a programming error that must be surfaced.
	ErrUnreachable = errors.New("unreachable")
)

// InvalidArgument wraps ErrInvalidArgument with a message and, optionally,
// the set of values the caller could have passed instead.
type InvalidArgument struct {
	Message        string
	PossibleValues []string
}

func (e *InvalidArgument) Error() string { return e.Message }

func (e *InvalidArgument) Unwrap() error { return ErrInvalidArgument }

// NewInvalidArgument builds an InvalidArgument error.
func NewInvalidArgument(format string, args ...any) *InvalidArgument {
	return &InvalidArgument{Message: fmt.Sprintf(format, args...)}
}

// NewInvalidArgumentWithValues builds an InvalidArgument error carrying the
// set of acceptable values, for RPC handlers like move's whence argument.
func NewInvalidArgumentWithValues(message string, possibleValues ...string) *InvalidArgument {
	return &InvalidArgument{Message: message, PossibleValues: possibleValues}
}

// NotFound wraps ErrNotFound with context about what wasn't found.
type NotFound struct {
	Message string
}

func (e *NotFound) Error() string { return e.Message }

func (e *NotFound) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFound error.
func NewNotFound(format string, args ...any) *NotFound {
	return &NotFound{Message: fmt.Sprintf(format, args...)}
}

// Unreachable wraps ErrUnreachable. Used for states a correct caller can
// never produce, e.g. a duplicate aid synthesized by a caller.
type Unreachable struct {
	Message string
}

func (e *Unreachable) Error() string { return e.Message }

func (e *Unreachable) Unwrap() error { return ErrUnreachable }

// NewUnreachable builds an Unreachable error.
func NewUnreachable(format string, args ...any) *Unreachable {
	return &Unreachable{Message: fmt.Sprintf(format, args...)}
}

// TransientStorage wraps ErrTransientStorage around a lower-level I/O
// error, e.g. a Redis connection failure or command error.
type TransientStorage struct {
	Cause error
}

func (e *TransientStorage) Error() string { return "transient storage error: " + e.Cause.Error() }

func (e *TransientStorage) Unwrap() []error { return []error{ErrTransientStorage, e.Cause} }

// NewTransientStorageWrap wraps a driver-level error (e.g. from go-redis)
// as a TransientStorage error, attaching a stack trace at the call site so
// logs at the Redis/bus boundary point back at the failing store method
// rather than just the driver's own error string.
func NewTransientStorageWrap(cause error) *TransientStorage {
	return &TransientStorage{Cause: pkgerrors.WithStack(cause)}
}

// Decode wraps ErrDecode around a lower-level decode failure, e.g. a stale
// or foreign-format cached snapshot. Callers treat this the same as
// absence: log it and move on, never propagate as a hard failure.
type Decode struct {
	Cause error
}

func (e *Decode) Error() string { return "decode error: " + e.Cause.Error() }

func (e *Decode) Unwrap() []error { return []error{ErrDecode, e.Cause} }

// NewDecodeWrap wraps a marshaling error (e.g. from msgpack or
// encoding/json) as a Decode error.
func NewDecodeWrap(cause error) *Decode {
	return &Decode{Cause: cause}
}
