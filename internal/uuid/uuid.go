// Package uuid generates and checks the client-side ids carried by every entity
// and queue item.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// Ensure returns id unchanged when set, otherwise a fresh id.
// Handlers use it so callers may supply their own ids.
func Ensure(id string) string {
	if id == "" {
		return New()
	}
	return id
}

// IsValid reports whether s is a canonical, dashed UUID v4.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// Validate returns an ErrInvalid error if s is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("invalid UUID v4: %q", s))
	}
	return nil
}
