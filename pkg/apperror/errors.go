// Package apperror is the error taxonomy shared by the booking and ledger core.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindForbidden              Kind = "forbidden"
	KindConflict               Kind = "conflict"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindValidation             Kind = "validation"
	KindGateway                Kind = "gateway"
	KindInternal               Kind = "internal"
)

// Error carries a Kind so callers can branch with errors.Is instead of
// matching message text.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict)
// works for every conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrGateway                = &Error{Kind: KindGateway}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newf(KindInvalidStateTransition, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return newf(KindInsufficientFunds, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// ValidationFields builds a validation error carrying a per-field message map.
func ValidationFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// Gateway wraps a payment provider failure.
func Gateway(err error, format string, args ...any) *Error {
	e := newf(KindGateway, format, args...)
	e.Err = err
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldsOf returns validation fields attached to err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
