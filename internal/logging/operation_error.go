package logging

import (
	"errors"
	"fmt"
)

// OperationError annotates an error with the pipeline stage and request it
// belongs to.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with structured context about where it occurred.
// An error that already carries the same request ID is wrapped only once per
// operation so nested stages do not repeat the request ID in the message.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OperationError
	if errors.As(err, &existing) && existing.Operation == operation && existing.RequestID == requestID {
		return err
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// RequestIDOf returns the request ID of the outermost OperationError in err.
func RequestIDOf(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.RequestID
	}
	return ""
}
