// Package errors provides error codes shared by the sync engine and the backend boundary.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code carried across the backend boundary.
type ErrorCode string

const (
	// General errors
	ErrInternal  ErrorCode = "INTERNAL_ERROR"
	ErrInvalid   ErrorCode = "INVALID_INPUT"
	ErrNotFound  ErrorCode = "NOT_FOUND"
	ErrDuplicate ErrorCode = "DUPLICATE"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Backend boundary errors
	ErrNetwork  ErrorCode = "NETWORK_ERROR"
	ErrConflict ErrorCode = "CONFLICT"
	ErrBackend  ErrorCode = "BACKEND_ERROR"

	// Sync errors
	ErrOffline          ErrorCode = "OFFLINE"
	ErrSyncInProgress   ErrorCode = "SYNC_IN_PROGRESS"
	ErrUnknownOperation ErrorCode = "UNKNOWN_OPERATION"
)

// Kind is the retry classification of a failed remote write.
type Kind string

const (
	// KindNetwork is a transport failure. Retried without bound.
	KindNetwork Kind = "network"
	// KindConflict means the write already landed. Treated as success.
	KindConflict Kind = "conflict"
	// KindBounded is any other failure. Retried up to the ceiling, then dropped.
	KindBounded Kind = "bounded"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error, or anything it wraps, carries a specific code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in the chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// KindOf classifies an error by the code attached at the backend boundary.
// Untagged errors are bounded.
func KindOf(err error) Kind {
	switch CodeOf(err) {
	case ErrNetwork, ErrOffline:
		return KindNetwork
	case ErrConflict, ErrDuplicate:
		return KindConflict
	default:
		return KindBounded
	}
}
