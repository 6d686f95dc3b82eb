// Package apperr defines the error codes surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeValidation        = "VALIDATION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeDuplicate         = "DUPLICATE"
	CodeAlreadyReturned   = "ALREADY_RETURNED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeWriteFailed       = "REMOTE_WRITE_FAILURE"
)

// Error is a coded application error. Field names the first offending
// input field for validation errors.
type Error struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a coded error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error for a single field.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = New(CodeValidation, "invalid input")
	ErrInsufficientStock = New(CodeInsufficientStock, "insufficient stock available")
	ErrDuplicate         = New(CodeDuplicate, "an item with this name already exists")
	ErrAlreadyReturned   = New(CodeAlreadyReturned, "borrow record already returned")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrInvalidTransition = New(CodeInvalidTransition, "status transition not allowed")
	ErrConflict          = New(CodeConflict, "resource was modified concurrently")
	ErrWriteFailed       = New(CodeWriteFailed, "store write failed")
)

// Code returns the code of err if it is (or wraps) an *Error, and
// CodeWriteFailed otherwise.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeWriteFailed
}
