package command

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/opencode-ai/tails/internal/event"
	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/opencode-ai/tails/pkg/schema"
	"github.com/opencode-ai/tails/pkg/types"
)

// Target is an application resolved from the command line.
type Target struct {
	App app.App
	// Path is the target as given.
	Path string
	// Dir is the directory containing the application; child processes run
	// and the watcher observes there.
	Dir string
}

// Name returns the application name.
func (t Target) Name() string {
	return t.App.Name()
}

// NewTarget resolves the working directory of an application given as path.
func NewTarget(a app.App, path string) (Target, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Target{}, err
	}
	return Target{App: a, Path: path, Dir: filepath.Dir(abs)}, nil
}

// Env is what commands share: the supervisor, configuration, and how to
// start child orchestrator processes.
type Env struct {
	Supervisor *supervisor.Supervisor
	Bus        *event.Bus
	Config     *types.Config

	// Executable re-runs the orchestrator for the server and worker
	// processes; ChildArgs are global flags passed along to them.
	Executable string
	ChildArgs  []string
	// ChildEnv is applied to every child process.
	ChildEnv map[string]string

	// StateDir holds per-application schema state.
	StateDir string

	Stdout io.Writer
	Stderr io.Writer

	mu        sync.Mutex
	cleanups  []func()
	cleanOnce sync.Once
}

// OnShutdown registers fn to run when the orchestrator shuts down, before
// the supervisor sweep.
func (e *Env) OnShutdown(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanups = append(e.cleanups, fn)
}

// Shutdown runs the registered functions once, most recent first.
func (e *Env) Shutdown() {
	e.cleanOnce.Do(func() {
		e.mu.Lock()
		fns := slices.Clone(e.cleanups)
		e.mu.Unlock()

		for _, fn := range slices.Backward(fns) {
			fn()
		}
	})
}

// Migrator returns the application's own migrator, or a file-backed one
// under StateDir.
func (e *Env) Migrator(t Target) schema.Migrator {
	if mp, ok := t.App.(app.MigratorProvider); ok {
		return mp.Migrator()
	}
	return schema.NewFileMigrator(filepath.Join(e.StateDir, t.Name()))
}

func (e *Env) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Env) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

// childArgs builds the arguments for re-running the orchestrator with a
// hidden command. The target is passed as an absolute path because the
// child runs in the target's directory.
func (e *Env) childArgs(t Target, command string, args ...string) []string {
	out := slices.Clone(e.ChildArgs)
	out = append(out, filepath.Join(t.Dir, filepath.Base(filepath.Clean(t.Path))), command)
	return append(out, args...)
}
