// Package apperr defines the error categories surfaced by the laundry job engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a category of application error.
type Code string

const (
	// CodeValidation indicates malformed input.
	CodeValidation Code = "validation"
	// CodeNotFound indicates a job, machine or transaction is absent.
	CodeNotFound Code = "not_found"
	// CodeConflict indicates a clash with current data, such as a machine already in use.
	CodeConflict Code = "conflict"
	// CodeInvalidState indicates an operation attempted outside its legal state.
	CodeInvalidState Code = "invalid_state"
	// CodeInternal indicates a persistence or other unexpected failure.
	CodeInternal Code = "internal"
)

// Error is a categorized application error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Field   string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validationf creates a Validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a Validation error tied to an input field.
func ValidationField(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

// NotFoundf creates a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf creates a Conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// InvalidStatef creates an InvalidState error with a formatted message.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an Internal error. A nil err yields nil.
func Internal(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeInternal, Message: message, Cause: err}
}

// CodeOf returns the Code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus maps an error to the status code returned by the staff API.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
