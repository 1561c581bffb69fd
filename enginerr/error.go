// Package enginerr defines the typed error kinds the engine returns, kept
// independent of any HTTP status so the boundary layer is free to choose its
// own mapping (see http.statusForKind).
package enginerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an engine operation failed.
type Kind int

const (
	// KindNotFound means the requested key does not exist.
	KindNotFound Kind = iota
	// KindMalformed means the request itself is invalid: unparseable JSON,
	// a missing required field, an unrecognized AST variant, a typed
	// literal whose tag doesn't match its value, or geo coordinates out
	// of range.
	KindMalformed
	// KindUnauthorized means the caller's API key was missing or wrong.
	KindUnauthorized
	// KindTransient means the operation can be retried as-is: a storage
	// layer contention or I/O hiccup that isn't expected to recur.
	KindTransient
	// KindFatal means the store is in a state that prevents it from
	// making progress at all (e.g. disk full, corruption detected).
	KindFatal
	// KindCancelled means the request's context was cancelled before
	// completion; no response body is owed to the client.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the engine's typed error: a Kind plus a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an *Error carrying a lower-level cause.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// NotFound builds a KindNotFound error, formatting reason like fmt.Sprintf.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Malformed builds a KindMalformed error, formatting reason like fmt.Sprintf.
func Malformed(format string, args ...any) *Error {
	return New(KindMalformed, fmt.Sprintf(format, args...))
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(reason string) *Error {
	return New(KindUnauthorized, reason)
}

// Cancelled builds a KindCancelled error.
func Cancelled() *Error {
	return New(KindCancelled, "request cancelled")
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, defaulting
// to KindFatal for anything else: an un-typed error from below the engine is
// treated as the least-recoverable case.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}
