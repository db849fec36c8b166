package supervisor

import (
	"context"
	"os/exec"
	"sync/atomic"
	"time"
)

// State is the liveness of a managed process.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ManagedProcess is a handle to a child process started by a Supervisor.
type ManagedProcess struct {
	id        string
	spec      InvocationSpec
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	state atomic.Int32
	done  chan struct{}

	// written before done is closed
	exitCode int
}

// ID returns the ULID assigned at spawn.
func (p *ManagedProcess) ID() string { return p.id }

// Pid returns the OS process id, which is also its process group id.
func (p *ManagedProcess) Pid() int { return p.pid }

// Spec returns the invocation the process was started from.
func (p *ManagedProcess) Spec() InvocationSpec { return p.spec }

// StartedAt returns when the process was launched.
func (p *ManagedProcess) StartedAt() time.Time { return p.startedAt }

// State returns the current liveness state.
func (p *ManagedProcess) State() State { return State(p.state.Load()) }

// Alive reports whether the process has not exited yet.
func (p *ManagedProcess) Alive() bool { return p.State() != StateTerminated }

// Done is closed once the process has exited and been reaped.
func (p *ManagedProcess) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit status, or -1 while running or when the process
// was killed by a signal.
func (p *ManagedProcess) ExitCode() int {
	select {
	case <-p.done:
		return p.exitCode
	default:
		return -1
	}
}

// Wait blocks until the process exits and returns its exit status.
func (p *ManagedProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.exitCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
