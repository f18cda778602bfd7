// Package apperr defines the domain error taxonomy shared by services and transports.
//
// Every domain failure is an *Error whose Kind is one of the package sentinels, so
// callers branch with errors.Is(err, apperr.ErrNotFound) and friends. Storage
// failures are never converted into these kinds; they propagate as plain wrapped
// errors so "you did something disallowed" stays distinguishable from
// "the system is unavailable".
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict marks a lost compare-and-swap; services retry it and never surface it.
	ErrConflict  = errors.New("concurrent update conflict")
	ErrTransient = errors.New("temporarily unavailable")
)

// Reason codes attached to InvalidState failures of a reward claim.
const (
	CodeNotCompleted   = "not_completed"
	CodeAlreadyClaimed = "already_claimed"
	CodeExpired        = "expired"
)

// Error is a domain failure tagged with one of the sentinel kinds.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity, or one the caller may not see.
func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, "not_found", format, args...)
}

// InvalidInput reports a malformed or out-of-range argument.
func InvalidInput(format string, args ...any) *Error {
	return newError(ErrInvalidInput, "invalid_input", format, args...)
}

// InvalidState reports a disallowed state transition; code says which state blocked it.
func InvalidState(code, format string, args ...any) *Error {
	return newError(ErrInvalidState, code, format, args...)
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(format string, args ...any) *Error {
	return newError(ErrUnauthorized, "unauthorized", format, args...)
}

// Forbidden reports an authenticated caller acting outside its own scope.
func Forbidden(format string, args ...any) *Error {
	return newError(ErrUnauthorized, "forbidden", format, args...)
}

// Conflict reports a lost compare-and-swap; services retry it.
func Conflict(format string, args ...any) *Error {
	return newError(ErrConflict, "conflict", format, args...)
}

// Transient wraps the last contention error once retries are exhausted.
func Transient(err error) *Error {
	return &Error{Kind: ErrTransient, Code: "transient", Message: "too much contention, retry later", Err: err}
}

// CodeOf returns the machine-readable code of a domain error, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "internal"
}
