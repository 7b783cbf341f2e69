// CLAUDE:SUMMARY Typed gateway errors: unknown operation, invalid payload, recording not found.
package gateway

import "fmt"

// ErrOperationNotFound is returned when Call targets an unregistered operation.
type ErrOperationNotFound struct {
	Op string
}

func (e *ErrOperationNotFound) Error() string {
	return fmt.Sprintf("gateway: operation not found: %s", e.Op)
}

// ErrInvalidPayload is returned when an operation payload cannot be decoded
// or misses a required field.
type ErrInvalidPayload struct {
	Op  string
	Err error
}

func (e *ErrInvalidPayload) Error() string {
	return fmt.Sprintf("gateway: %s: invalid payload: %v", e.Op, e.Err)
}

func (e *ErrInvalidPayload) Unwrap() error { return e.Err }

// ErrRecordingNotFound is returned when the journal has no recording with
// the requested ID, or when no journal is configured.
type ErrRecordingNotFound struct {
	ID string
}

func (e *ErrRecordingNotFound) Error() string {
	return fmt.Sprintf("gateway: recording not found: %s", e.ID)
}
