package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a clinote error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"       // 404
	ErrBusy                ErrorCode = "BUSY"                 // 409
	ErrStaleResult         ErrorCode = "STALE_RESULT"         // 409
	ErrValidationFailed    ErrorCode = "VALIDATION_FAILED"    // 422
	ErrCancelled           ErrorCode = "CANCELLED"            // 499
	ErrInternal            ErrorCode = "INTERNAL"             // 500
	ErrCollaboratorFailure ErrorCode = "COLLABORATOR_FAILURE" // 502
)

// NoteError represents a structured error with code, status, and details.
type NoteError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *NoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *NoteError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *NoteError {
	return &NoteError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing draft or history entry.
func NewNotFound(identifier string) *NoteError {
	return &NoteError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *NoteError {
	return &NoteError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewBusy creates a 409 error when an assistant request of the same kind is already pending.
func NewBusy(operation string) *NoteError {
	return &NoteError{
		Code:    ErrBusy,
		Status:  409,
		Message: fmt.Sprintf("%s already in progress", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewStaleResult creates a 409 error when an assistant result arrives after
// the record kind was switched or the form was reset.
func NewStaleResult(operation string) *NoteError {
	return &NoteError{
		Code:    ErrStaleResult,
		Status:  409,
		Message: fmt.Sprintf("%s result discarded: the note changed while the request was pending", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewValidationFailed creates a 422 error for records that cannot be exported yet.
func NewValidationFailed(missing []string) *NoteError {
	return &NoteError{
		Code:    ErrValidationFailed,
		Status:  422,
		Message: fmt.Sprintf("note is missing required fields: %v", missing),
		Details: map[string]any{"missing_fields": missing},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by the caller.
func NewCancelled(operation string) *NoteError {
	return &NoteError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewCollaboratorFailure creates a 502 error when the assistant produced no usable result.
// The cause is kept for logging and is never exposed through Details.
func NewCollaboratorFailure(operation string, cause error) *NoteError {
	return &NoteError{
		Code:    ErrCollaboratorFailure,
		Status:  502,
		Message: fmt.Sprintf("assistant could not %s the note", operation),
		Details: map[string]any{"operation": operation},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *NoteError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &NoteError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a NoteError with the given code.
func Is(err error, code ErrorCode) bool {
	var nErr *NoteError
	if stderrors.As(err, &nErr) {
		return nErr.Code == code
	}
	return false
}
