package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	// Entity-specific variants below wrap it so callers can match either.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. The wrapped error carries the validation detail.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrPersistence is returned when the backing store itself fails
	// (connection loss, constraint violations that indicate bugs, driver
	// errors). It is fatal to the current operation only.
	ErrPersistence = errors.New("persistence failure")

	// ErrTransactionFailed is returned when a transaction fails to commit
	// or an operation inside one fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrTaskNotFound indicates the requested generation task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: generation task", ErrNotFound)

	// ErrCheckpointNotFound indicates the requested model checkpoint does not exist.
	ErrCheckpointNotFound = fmt.Errorf("%w: model checkpoint", ErrNotFound)
)

// IsNotFoundError checks whether err is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError carries entity and operation context alongside the underlying
// cause, so logs and wrapped chains say which store call failed.
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError with the given context.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
