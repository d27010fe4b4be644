// Package apperr defines the error taxonomy shared by domain services and the
// HTTP layer.
package apperr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// Internal is an unexpected or downstream failure.
	Internal Kind = iota
	// Validation is malformed or missing input.
	Validation
	// NotFound means a referenced entity does not exist.
	NotFound
	// Conflict is an idempotency or concurrency violation.
	Conflict
	// Unauthorized means the caller is not authenticated.
	Unauthorized
	// Forbidden means the caller lacks the required role.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a classified error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err while keeping it in the chain.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validationf returns a Validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of the first *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-safe message of the first *Error in the chain.
// Internal errors never expose their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}
