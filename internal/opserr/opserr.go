package opserr

import (
	"errors"
	"fmt"
)

// Kind classifies an operational failure. Every error returned by the
// core services carries exactly one Kind; the transport layer maps
// kinds to status codes and never inspects the underlying cause.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindValidation   Kind = "VALIDATION_ERROR"
	KindInvalidState Kind = "INVALID_STATE"
	KindTimeout      Kind = "TIMEOUT"
	KindExecution    Kind = "EXECUTION_ERROR"
	KindUnavailable  Kind = "UNAVAILABLE"
)

// Error is a taxonomy error: a kind, a message safe to return to the
// caller, and an optional wrapped cause that is logged but never
// serialized into a response.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a taxonomy error with a formatted safe message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a taxonomy error. The message stays the
// sanitized, caller-visible part; the cause is for logs only.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err, or KindExecution if err is not a
// taxonomy error. A nil err has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// SafeMessage returns the caller-visible message for err. Non-taxonomy
// errors collapse to a generic message so backend detail never leaks.
func SafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
