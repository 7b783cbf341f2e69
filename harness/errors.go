// CLAUDE:SUMMARY ExecutionError for runs that could not spawn, stream or clean up.
package harness

import "fmt"

// ExecutionError means a run did not complete: the worker could not be
// spawned, its streams could not be read, or the journey file could not be
// written or removed. It carries no usable output.
type ExecutionError struct {
	RunID string
	Op    string // write, spawn, stdin, read, wait, cleanup
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("harness: run %s: %s: %v", e.RunID, e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
