// Package errors tests for error code definitions and classification.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// allCodes lists every defined error code.
var allCodes = []ErrorCode{
	ErrInternal, ErrInvalid, ErrNotFound, ErrDuplicate,
	ErrDatabase, ErrMigration,
	ErrNetwork, ErrConflict, ErrBackend,
	ErrOffline, ErrSyncInProgress, ErrUnknownOperation,
}

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrNetwork, Message: "insert health_logs", Err: errors.New("connection refused")},
			want:     "[NETWORK_ERROR] insert health_logs: connection refused",
		},
		{
			name:     "conflict error",
			appError: &AppError{Code: ErrConflict, Message: "duplicate key"},
			want:     "[CONFLICT] duplicate key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAppError_Unwrap verifies unwrapping of underlying error.
func TestAppError_Unwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")

	err := Wrap(ErrBackend, "failed", underlyingErr)
	if err.Unwrap() != underlyingErr {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlyingErr)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is should see the wrapped error")
	}

	if New(ErrInternal, "failed").Unwrap() != nil {
		t.Error("Unwrap() of New() should be nil")
	}
}

// TestIs verifies error code checking, including wrapped chains.
func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching AppError", New(ErrNotFound, "not found"), ErrNotFound, true},
		{"non-matching AppError", New(ErrNotFound, "not found"), ErrInternal, false},
		{"wrapped by fmt", fmt.Errorf("drain: %w", New(ErrConflict, "dup")), ErrConflict, true},
		{"non-AppError", errors.New("standard error"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =====================================================
// Classification
// =====================================================

// TestKindOf verifies the retry classification used by the queue processor.
func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"network", New(ErrNetwork, "dial tcp"), KindNetwork},
		{"offline", New(ErrOffline, "offline"), KindNetwork},
		{"conflict", New(ErrConflict, "unique violation"), KindConflict},
		{"duplicate", New(ErrDuplicate, "already enrolled"), KindConflict},
		{"wrapped conflict", fmt.Errorf("replay: %w", New(ErrConflict, "pk")), KindConflict},
		{"backend 500", New(ErrBackend, "status 500"), KindBounded},
		{"unknown op", New(ErrUnknownOperation, "NOPE"), KindBounded},
		{"plain error", errors.New("boom"), KindBounded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestKindOf_messageIsIgnored verifies classification never reads error text.
func TestKindOf_messageIsIgnored(t *testing.T) {
	err := errors.New("409 conflict: network unreachable")
	if got := KindOf(err); got != KindBounded {
		t.Errorf("KindOf() = %q, want %q for untagged error", got, KindBounded)
	}
}

// TestCodeOf verifies the fallback code for untagged errors.
func TestCodeOf(t *testing.T) {
	if got := CodeOf(errors.New("x")); got != ErrInternal {
		t.Errorf("CodeOf() = %q, want %q", got, ErrInternal)
	}
	if got := CodeOf(Wrap(ErrDatabase, "q", nil)); got != ErrDatabase {
		t.Errorf("CodeOf() = %q, want %q", got, ErrDatabase)
	}
}

// =====================================================
// Code table
// =====================================================

// TestErrorCodes_areUnique verifies all error codes are unique.
func TestErrorCodes_areUnique(t *testing.T) {
	seen := make(map[ErrorCode]bool)
	for _, code := range allCodes {
		if code == "" {
			t.Error("ErrorCode should not be empty")
		}
		if seen[code] {
			t.Errorf("ErrorCode %q is duplicated", code)
		}
		seen[code] = true
	}
}

// TestErrorCode_uppercase verifies error codes follow naming convention.
func TestErrorCode_uppercase(t *testing.T) {
	for _, code := range allCodes {
		str := string(code)
		if str != strings.ToUpper(str) {
			t.Errorf("ErrorCode %q should be uppercase", str)
		}
	}
}
