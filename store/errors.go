package store

import (
	"errors"
	"fmt"
)

// ErrorCode classifies backend errors behind the facade.
type ErrorCode string

const (
	// ErrorCodeConflict indicates a uniqueness violation on email or website.
	ErrorCodeConflict ErrorCode = "conflict"
	// ErrorCodeNotFound indicates a referenced contact does not exist.
	ErrorCodeNotFound ErrorCode = "not_found"
	// ErrorCodeUnavailable indicates a backend could not be initialized.
	ErrorCodeUnavailable ErrorCode = "unavailable"
	// ErrorCodeUsage indicates invalid input to a store operation.
	ErrorCodeUsage ErrorCode = "usage"
	// ErrorCodeStore indicates a storage/backend failure.
	ErrorCodeStore ErrorCode = "store"
)

// Error is a typed package error for store operations.
//
// Field and Value are populated for conflict errors so callers can offer
// "update existing" flows with a precise message.
type Error struct {
	Code    ErrorCode
	Field   string
	Value   string
	Message string
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "store: <nil>"
	}
	switch {
	case e.Field != "" && e.Value != "":
		return fmt.Sprintf("store: %s: %s %q %s", e.Code, e.Field, e.Value, e.Message)
	case e.Message == "":
		return fmt.Sprintf("store: %s", e.Code)
	default:
		return fmt.Sprintf("store: %s: %s", e.Code, e.Message)
	}
}

// CodeOf extracts the ErrorCode from err, or ErrorCodeStore when err carries
// no code.
func CodeOf(err error) ErrorCode {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return ErrorCodeStore
}

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Code == ErrorCodeConflict
}

// IsNotFound reports whether err indicates a missing contact.
func IsNotFound(err error) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Code == ErrorCodeNotFound
}

// TransactionError reports a bulk operation that failed after some chunks
// were durably committed. Committed counts records written before the
// failure; the failing chunk itself was rolled back.
type TransactionError struct {
	Committed int
	Chunk     int
	Err       error
}

// Error returns the formatted error message.
func (e *TransactionError) Error() string {
	return fmt.Sprintf("store: chunk %d failed after %d records committed: %v", e.Chunk, e.Committed, e.Err)
}

// Unwrap exposes the underlying chunk failure.
func (e *TransactionError) Unwrap() error {
	return e.Err
}
