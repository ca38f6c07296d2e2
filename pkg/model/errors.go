package model

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidObservation is returned when a payload or derived observation
	// is malformed. Nothing is persisted in that case.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrCapacityExceeded is returned when eviction cannot keep a user's
	// window within the configured capacity. Callers may retry.
	ErrCapacityExceeded = errors.New("observation capacity exceeded")

	// ErrClassificationUnavailable is returned when the upstream classifier
	// fails. The interaction is not ingested and the caller decides on retry.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrNotFound is returned by explicit per-id lookups that miss.
	ErrNotFound = errors.New("not found")
)

// OpError wraps errors with operation context.
type OpError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *OpError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *OpError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *OpError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOp wraps an error with operation context.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
