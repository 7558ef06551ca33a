package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyExists is returned on unique-constraint violations
	// (duplicate session_id or unique_link).
	ErrAlreadyExists = errors.New("session already exists")
)

// StorageError wraps backend I/O failures. It must propagate to the HTTP
// layer (5xx) rather than be swallowed; background tasks log and continue.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps err unless it is already one of the store's sentinel or
// domain errors.
func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
