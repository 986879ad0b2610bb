// Package errs defines the error kinds reported back to clients.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation_failure"
	KindUnregistered Kind = "unregistered"
	KindInternal     Kind = "internal"
)

// Sentinels for errors.Is checks. Any *Error with the same Kind matches.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnregistered = &Error{Kind: KindUnregistered}
	ErrInternal     = &Error{Kind: KindInternal}
)

// Error carries a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unregistered(format string, args ...any) *Error {
	return &Error{Kind: KindUnregistered, Message: fmt.Sprintf(format, args...)}
}

// Internal marks cause as a server fault. Its message is not shown to clients.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
