package cerr

import (
	"errors"
	"fmt"
)

// Error is the structured error type for the catalog engine.
// It carries a code, category, and severity so callers can decide whether
// a failure is local to one file or fatal for the whole batch.
type Error struct {
	// Code is the unique error code (e.g., "ERR_203_EMPTY_DIMENSION").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Dataset, Store, Discovery, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code string, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// HasCode reports whether err (or any error in its chain) carries the code.
func HasCode(err error, code string) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsEmptyDimension reports whether the error is an empty time dimension.
func IsEmptyDimension(err error) bool {
	return HasCode(err, CodeEmptyDimension)
}

// IsNonCompliantTime reports whether the error is a non-CF-compliant time
// variable (missing units or calendar).
func IsNonCompliantTime(err error) bool {
	return HasCode(err, CodeNonCompliantTime)
}

// GetCode extracts the error code from an Error.
// Returns empty string if not an Error.
func GetCode(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
