package types

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed client input. It is rejected
// before any store call and reported to the sender only.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthorizationError reports an action the caller is not permitted to
// perform. It is never treated as a system fault.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Action)
}

func NewAuthorizationError(action string) *AuthorizationError {
	return &AuthorizationError{Action: action}
}

// StorageError wraps a repository failure. Callers must not broadcast
// or fan out after receiving one; the operation is retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

var (
	// ErrMessagingLocked is returned on public sends while the
	// channel is locked. Distinct from validation so clients can
	// render a "locked" state.
	ErrMessagingLocked = errors.New("public messaging is locked")

	// ErrUserSuspended rejects every send path for suspended users.
	ErrUserSuspended = errors.New("messaging privileges are suspended")

	// ErrSelfMessage rejects private sends where sender == receiver.
	ErrSelfMessage = errors.New("cannot send a message to yourself")

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidateContent enforces the shared message content rules.
func ValidateContent(content string) error {
	if content == "" {
		return NewValidationError("content", "cannot be empty")
	}
	if len([]rune(content)) > MaxContentLength {
		return NewValidationError("content", "exceeds maximum length")
	}
	return nil
}
