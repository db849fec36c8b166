package supervisor

import (
	"errors"
	"fmt"
)

// ErrShuttingDown is returned by Spawn once the termination sweep has begun.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// SpawnError reports that the OS could not start a child process.
type SpawnError struct {
	Spec InvocationSpec
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s): %v", e.Spec.Label(), e.Spec.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// SubordinateExitError reports that an awaited child exited unsuccessfully.
// Code becomes the orchestrator's own exit status.
type SubordinateExitError struct {
	Name string
	Code int
}

func (e *SubordinateExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}
