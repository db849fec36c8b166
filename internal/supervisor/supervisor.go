// Package supervisor starts, tracks and terminates the orchestrator's child
// processes.
//
// Every child runs in its own process group so that terminating it also
// reaches the processes it forked (a bundler's node workers, a shell's
// children). A Supervisor owns an ordered registry of live children;
// TerminateAll sweeps whatever is still registered and must be deferred on
// every exit path of the orchestrator so no child outlives it.
package supervisor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/opencode-ai/tails/internal/event"
	"github.com/opencode-ai/tails/pkg/types"
	"github.com/rs/zerolog/log"
)

// pipeWaitDelay bounds how long Wait keeps copying output of a child whose
// descendants still hold its stdout/stderr after it exited.
const pipeWaitDelay = time.Second

// groupPollInterval is how often Terminate checks for group members that
// outlived the group leader.
const groupPollInterval = 20 * time.Millisecond

// Supervisor manages child processes.
type Supervisor struct {
	mu     sync.Mutex
	procs  []*ManagedProcess
	closed bool

	killGrace time.Duration
	bus       *event.Bus
	stdout    io.Writer
	stderr    io.Writer

	sweepOnce sync.Once
	sweepErr  error
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithKillGrace sets how long Terminate waits after SIGTERM before SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.killGrace = d
		}
	}
}

// WithBus publishes process.started and process.exited events to bus.
func WithBus(bus *event.Bus) Option {
	return func(s *Supervisor) {
		s.bus = bus
	}
}

// WithOutput sets the default stdout and stderr of children.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		killGrace: types.DefaultKillGrace,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn starts a child process and registers it for termination. Launch
// failures are returned as *SpawnError and are not retried.
func (s *Supervisor) Spawn(ctx context.Context, spec InvocationSpec) (*ManagedProcess, error) {
	spec = spec.clone()
	if spec.Path == "" {
		return nil, &SpawnError{Spec: spec, Err: errors.New("empty command path")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Spec: spec, Err: err}
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.environ()
	cmd.Stdout = cmp.Or(spec.Stdout, s.stdout)
	cmd.Stderr = cmp.Or(spec.Stderr, s.stderr)
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = pipeWaitDelay

	p := &ManagedProcess{
		id:       ulid.Make().String(),
		spec:     spec,
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	p.state.Store(int32(StateStarting))

	// Start under the lock so a concurrent sweep either sees the process
	// or makes this call fail; nothing can slip in after the sweep.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &SpawnError{Spec: spec, Err: ErrShuttingDown}
	}
	if err := startProcess(cmd); err != nil {
		s.mu.Unlock()
		log.Error().Err(err).Str("process", spec.Label()).Str("command", spec.String()).Msg("failed to start process")
		return nil, &SpawnError{Spec: spec, Err: err}
	}
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.state.Store(int32(StateRunning))
	s.procs = append(s.procs, p)
	s.mu.Unlock()

	go s.wait(p)

	log.Debug().
		Str("process", spec.Label()).
		Str("id", p.id).
		Int("pid", p.pid).
		Str("command", spec.String()).
		Msg("process started")
	s.bus.Publish(event.Event{
		Type: event.ProcessStarted,
		Data: event.ProcessData{ID: p.id, Name: spec.Label(), Pid: p.pid},
	})

	return p, nil
}

// wait reaps the process and deregisters it.
func (s *Supervisor) wait(p *ManagedProcess) {
	err := p.cmd.Wait()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	p.exitCode = code
	p.state.Store(int32(StateTerminated))
	close(p.done)

	s.remove(p)

	log.Debug().
		Err(err).
		Str("process", p.spec.Label()).
		Int("pid", p.pid).
		Int("exitCode", code).
		Msg("process exited")
	s.bus.Publish(event.Event{
		Type: event.ProcessExited,
		Data: event.ProcessData{ID: p.id, Name: p.spec.Label(), Pid: p.pid, ExitCode: code},
	})
}

// Terminate signals the process group with SIGTERM and waits for the
// process to exit, escalating to SIGKILL after the kill grace or when ctx is
// done. It returns only once the exit is confirmed, so a replacement can
// safely reuse the old process's resources (ports, files). Members of the
// group that outlive the leader get the rest of the grace before the group
// is killed. Terminating an exited process is a no-op.
func (s *Supervisor) Terminate(ctx context.Context, p *ManagedProcess) error {
	if p == nil {
		return nil
	}

	select {
	case <-p.done:
		s.remove(p)
		return nil
	default:
	}

	log.Debug().Str("process", p.spec.Label()).Int("pid", p.pid).Msg("terminating process")
	if err := interrupt(p); err != nil {
		return fmt.Errorf("terminate %s (pid %d): %w", p.spec.Label(), p.pid, err)
	}

	grace := time.NewTimer(s.killGrace)
	defer grace.Stop()

	var err error
	select {
	case <-p.done:
		err = s.drainGroup(ctx, p, grace.C)
	case <-grace.C:
		log.Warn().
			Str("process", p.spec.Label()).
			Int("pid", p.pid).
			Dur("grace", s.killGrace).
			Msg("process ignored SIGTERM, killing")
		err = s.killAndWait(p)
	case <-ctx.Done():
		err = s.killAndWait(p)
	}

	s.remove(p)
	return err
}

func (s *Supervisor) killAndWait(p *ManagedProcess) error {
	if err := kill(p); err != nil {
		return fmt.Errorf("kill %s (pid %d): %w", p.spec.Label(), p.pid, err)
	}
	<-p.done
	return nil
}

// drainGroup waits for the rest of p's process group after the leader has
// exited. When grace fires or ctx is done the remaining members are killed.
// Members reparented to init may linger as zombies until it reaps them, so
// the group is not waited on after the kill.
func (s *Supervisor) drainGroup(ctx context.Context, p *ManagedProcess, grace <-chan time.Time) error {
	if !groupAlive(p.pid) {
		return nil
	}

	ticker := time.NewTicker(groupPollInterval)
	defer ticker.Stop()

	for groupAlive(p.pid) {
		select {
		case <-ticker.C:
			continue
		case <-grace:
			log.Warn().
				Str("process", p.spec.Label()).
				Int("pgid", p.pid).
				Dur("grace", s.killGrace).
				Msg("process group outlived its leader, killing")
		case <-ctx.Done():
		}
		if err := kill(p); err != nil {
			return fmt.Errorf("kill group of %s (pgid %d): %w", p.spec.Label(), p.pid, err)
		}
		return nil
	}
	return nil
}

// TerminateAll terminates every registered process in registration order
// and refuses further spawns. Only the first call does any work; later calls
// return the first call's result. Failures are logged and joined; one
// process failing does not stop the sweep.
func (s *Supervisor) TerminateAll() error {
	s.sweepOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		procs := slices.Clone(s.procs)
		s.mu.Unlock()

		if len(procs) > 0 {
			log.Debug().Int("count", len(procs)).Msg("terminating child processes")
		}

		var errs []error
		for _, p := range procs {
			if err := s.Terminate(context.Background(), p); err != nil {
				log.Error().Err(err).Str("process", p.spec.Label()).Msg("failed to terminate process")
				errs = append(errs, err)
			}
		}
		s.sweepErr = errors.Join(errs...)
	})
	return s.sweepErr
}

// Processes returns the registered processes in registration order.
func (s *Supervisor) Processes() []*ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.procs)
}

func (s *Supervisor) remove(p *ManagedProcess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs = slices.DeleteFunc(s.procs, func(q *ManagedProcess) bool {
		return q == p
	})
}
