package network

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrUnknownCollection = errors.New("unknown edge collection")
	ErrInvalidBranch     = errors.New("invalid branch id")
	ErrDuplicateEdge     = errors.New("duplicate edge id")
	ErrDuplicateLiaison  = errors.New("duplicate liaison id")
	ErrSourceUnavailable = errors.New("source unavailable")
)

// SourceError provides structured error information for collaborator operations.
type SourceError struct {
	Op     string // Operation that failed (e.g., "edges", "select")
	Layer  string // Layer name (e.g., "conduit", "liaison")
	Cause  error  // Underlying error
	Detail string // Additional context
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Layer, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Layer, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *SourceError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// NewSourceError wraps cause for an operation on a layer
func NewSourceError(op, layer string, cause error) error {
	return &SourceError{Op: op, Layer: layer, Cause: cause}
}
