package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRemoteUnavailable marks a transient sync failure; callers of local
	// mutations never see it, the engine retries in the background.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrSessionRequired is returned when a remote operation runs without a
	// signed-in session.
	ErrSessionRequired = errors.New("session required")
	// ErrCorruptCache marks a local cache record that failed to deserialize.
	// Stores recover by treating the collection as empty.
	ErrCorruptCache = errors.New("corrupt cache record")
)

// ValidationError rejects a malformed entity before persistence.
type ValidationError struct {
	Entity string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Entity, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for the named entity.
func NewValidationError(entity, reason string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Reason: reason, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
