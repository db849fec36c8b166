package command

import (
	"errors"
	"fmt"
)

// ArgumentError reports invalid command-line input. It is returned before
// any command runs.
type ArgumentError struct {
	Err error
	// Usage is the help text of the command involved, if one was resolved.
	Usage string
}

func (e *ArgumentError) Error() string {
	return e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func argumentErrorf(usage, format string, args ...any) *ArgumentError {
	return &ArgumentError{Err: fmt.Errorf(format, args...), Usage: usage}
}

// errIdle is returned by a blocking command that started nothing to wait
// for. Dispatch reports it as a non-blocking success.
var errIdle = errors.New("nothing started")
