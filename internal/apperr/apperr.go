// Package apperr defines the typed failures returned by the service layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindForbidden
	KindConflict
	KindInvalidInput
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is; an *Error matches the sentinel of its kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalidState    = &Error{Kind: KindInvalidState, Msg: "invalid state"}
	ErrForbidden       = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrConflict        = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Msg: "unauthenticated"}
)

// Error is a domain failure. Op names the service operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Permanent marks domain errors as non-retryable for the MQ consumer.
func (e *Error) Permanent() bool { return true }

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, format, args...)
}

func InvalidState(op, format string, args ...any) *Error {
	return newf(KindInvalidState, op, format, args...)
}

func Forbidden(op, format string, args ...any) *Error {
	return newf(KindForbidden, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return newf(KindConflict, op, format, args...)
}

func InvalidInput(op, format string, args ...any) *Error {
	return newf(KindInvalidInput, op, format, args...)
}

func Unauthenticated(op, format string, args ...any) *Error {
	return newf(KindUnauthenticated, op, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
