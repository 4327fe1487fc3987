// Package apperror defines the error taxonomy shared by the RPC boundary,
// the ingest path, and the queue handlers, so callers can switch on kind
// instead of matching strings.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for both the RPC boundary and the queue handlers.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindNotFound   Kind = "NOT_FOUND"
	KindTransient  Kind = "TRANSIENT"
	KindFatal      Kind = "FATAL"
)

// Error is a classified application error. It wraps an underlying cause
// without leaking it to RPC clients: the RPC boundary renders Message only.
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

func (e *Error) Unwrap() error {
	return e.Cause
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) *Error    { return newf(KindConflict, format, args...) }
func NotFound(format string, args ...any) *Error    { return newf(KindNotFound, format, args...) }

func Transient(cause error, format string, args ...any) *Error {
	e := newf(KindTransient, format, args...)
	e.Cause = cause
	return e
}

func Fatal(cause error, format string, args ...any) *Error {
	e := newf(KindFatal, format, args...)
	e.Cause = cause
	return e
}

// Wrap classifies a generic error as Transient, preserving its kind if it
// is already an *Error.
func Wrap(err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Transient(err, format, args...)
}

// KindOf extracts the Kind of err, defaulting to KindTransient for
// unclassified errors so the default handling policy is "retry, don't drop".
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
