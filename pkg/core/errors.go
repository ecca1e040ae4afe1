// Package core provides the main MemGraph session and domain graph management.
package core

import (
	"fmt"

	"github.com/memgraph-go/memgraph/pkg/storage"
)

// Predefined errors for common failure scenarios. They alias the storage
// sentinels so errors.Is works across package boundaries.
var (
	// ErrNotFound indicates that a requested domain or memory was not found.
	ErrNotFound = storage.ErrNotFound

	// ErrInvalidArgument indicates that a request parameter is missing or malformed.
	ErrInvalidArgument = storage.ErrInvalidArgument

	// ErrConflict indicates that a domain or memory with the same id already exists.
	ErrConflict = storage.ErrConflict

	// ErrStorageFailure indicates that the storage backend failed.
	ErrStorageFailure = storage.ErrStorageFailure

	// ErrIntegrityViolation indicates that an operation would break a graph invariant.
	ErrIntegrityViolation = storage.ErrIntegrityViolation
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "StoreMemory",
//	    Err: ErrIntegrityViolation,
//	}
//	// Error() returns: "memgraph: StoreMemory: integrity violation"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "memgraph: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("memgraph: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("StoreMemory", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "StoreMemory", "SelectDomain")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
