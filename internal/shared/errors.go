// Package shared holds the error taxonomy used across the platform packages.
// It has no dependencies outside the standard library.
package shared

import "errors"

var (
	// ErrNotFound is returned when a catalog or user lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating an entity whose key is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks input rejected by a domain rule.
	ErrValidation = errors.New("validation error")

	// ErrInvalidSelection is returned by prompts when the entered option is
	// outside the offered set. Callers re-prompt instead of failing.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrDataCorruption marks a persisted document that does not decode into
	// the expected structure.
	ErrDataCorruption = errors.New("data corruption")

	// ErrInterrupted marks a user-initiated cancellation.
	ErrInterrupted = errors.New("interrupted")

	// ErrInvalidTransition is returned when a progress change would skip or
	// rewind the cursor.
	ErrInvalidTransition = errors.New("invalid progress transition")

	// ErrPersistence wraps a failed commit of user state.
	ErrPersistence = errors.New("persistence failure")
)

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInterrupted reports whether err comes from a user interrupt.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

// IsDataCorruption reports whether err marks an undecodable record.
func IsDataCorruption(err error) bool {
	return errors.Is(err, ErrDataCorruption)
}
