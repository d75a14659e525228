// Package domainerrors carries coded errors across service boundaries.
//
// Services return errors built with New or Wrap so handlers and workers can
// branch on the Code without string matching. Stores never return coded errors;
// they return pkg/platform/sentinel values that services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeInvalidInput        Code = "invalid_input"
	CodeBadRequest          Code = "bad_request"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeConcurrencyConflict Code = "concurrency_conflict"
	CodeForbidden           Code = "forbidden"
	CodeUnauthorized        Code = "unauthorized"
	CodeTimeout             Code = "timeout"
	CodeInvariantViolation  Code = "invariant_violation"
	CodeInternal            Code = "internal_error"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, and the same message when the
// target sets one, so errors.Is works against a freshly built expectation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// GetCode returns the outermost code in err's chain, or CodeInternal when none is set.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// TransitionError is returned when an action is attempted from a status that
// does not allow it. Current and Required are the string forms of the entity's
// status enum; Required may list several acceptable statuses.
type TransitionError struct {
	Entity   string
	Current  string
	Required []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s in status %s, requires %v", e.Entity, e.Current, e.Required)
}

// InvalidTransition builds a CodeInvalidTransition error carrying a TransitionError.
func InvalidTransition(entity, current string, required ...string) error {
	te := &TransitionError{Entity: entity, Current: current, Required: required}
	return &Error{Code: CodeInvalidTransition, Message: "invalid transition", Err: te}
}

// AsTransition extracts the TransitionError from err's chain.
func AsTransition(err error) (*TransitionError, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
