package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
	ErrUnexpected = errors.New("unexpected failure")
)

// Domain error types
type (
	// NotFoundError indicates a folder row was not found in the scope
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StorageError reports that the relational store rejected or failed a statement.
// The owning transaction has been rolled back by the time the caller sees it.
type StorageError struct {
	Op  string // Operation that failed, e.g. "delete folder"
	Err error  // Driver error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the driver error to errors.As
func (e *StorageError) Unwrap() error { return e.Err }

// Is allows errors.Is() to match against ErrStorage
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// UnexpectedError wraps a non-storage fault (typically a recovered panic)
// encountered in the middle of an operation.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: unexpected: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

func (e *UnexpectedError) Is(target error) bool { return target == ErrUnexpected }

// ConflictError represents a folder identifier collision
type ConflictError struct {
	Message    string // Human-readable error message
	ResourceID string // ID of the existing/conflicting folder
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Storage wraps err as a StorageError unless it already carries a domain classification.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	var ue *UnexpectedError
	if errors.As(err, &se) || errors.As(err, &ue) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
