package rag

import (
	"errors"
	"fmt"
)

// ErrEmptyIndex is returned when a search or query runs against a store
// holding no vectors.
var ErrEmptyIndex = errors.New("rag: index is empty")

// ErrOutOfRange is returned when a ledger position has no record.
var ErrOutOfRange = errors.New("rag: position out of range")

// ValidationError reports caller input that was rejected before any state
// was touched.
type ValidationError struct {
	// Field names the offending input, e.g. "records[3].page".
	Field string
	// Reason is a short human-readable explanation.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "rag: invalid input: " + e.Reason
	}
	return fmt.Sprintf("rag: invalid %s: %s", e.Field, e.Reason)
}

// CollaboratorError wraps a failure of the embedding or QA backend.
type CollaboratorError struct {
	// Op is "embed" or "answer".
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("rag: %s collaborator failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsCollaborator reports whether err is (or wraps) a *CollaboratorError.
func IsCollaborator(err error) bool {
	var c *CollaboratorError
	return errors.As(err, &c)
}
