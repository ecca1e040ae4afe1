package storage

import "errors"

// Predefined errors shared by all storage backends.
//
// Backends wrap driver-level failures so that the error kind survives
// unchanged to the caller, for example:
//
//	return fmt.Errorf("SaveMemories: %v: %w", err, ErrStorageFailure)
var (
	// ErrNotFound indicates an unknown domain or node ID.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a missing required parameter, a
	// strength outside [0,1], an unknown relationship type, or a
	// malformed query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict indicates that a domain ID already exists.
	ErrConflict = errors.New("already exists")

	// ErrStorageFailure indicates an I/O or connection error in the backend.
	ErrStorageFailure = errors.New("storage failure")

	// ErrIntegrityViolation indicates an edge or reference pointing at a
	// nonexistent entity.
	ErrIntegrityViolation = errors.New("integrity violation")
)
