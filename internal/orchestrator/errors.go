package orchestrator

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a handler is called while another operation is
// still in flight.
var ErrBusy = errors.New("another operation is in progress")

// ValidationError is a local input failure; no request was made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PermissionError means the microphone could not be acquired.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return "Unable to access microphone. Please check permissions."
}

func (e *PermissionError) Unwrap() error { return e.Err }
