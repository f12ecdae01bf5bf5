// Package apperr defines the error kinds surfaced by the API.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	Unauthenticated
	Forbidden
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case Unauthenticated:
		return "authentication_error"
	case Forbidden:
		return "authorization_error"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Internal:
		return "internal_error"
	}
	return "internal_error"
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Invalid(details []FieldError) *Error {
	return &Error{Kind: Validation, Message: "invalid input", Details: details}
}

func Unauthorized(msg string) *Error { return New(Unauthenticated, msg) }

func Denied(msg string) *Error { return New(Forbidden, msg) }

func Missing(what string) *Error { return New(NotFound, what+" not found") }

// KindOf returns the kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
