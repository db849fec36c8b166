package command

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/rs/zerolog/log"
)

var buildOptions = []Option{
	{Name: "production", Kind: Bool, Default: false, Usage: "Build files in production mode"},
	{Name: "watch", Kind: Bool, Default: false, Usage: "Rebuild when files change"},
}

// Build runs the bundler. Without --watch it waits for the bundler and fails
// with its exit status; with --watch the bundler keeps running and the
// orchestrator parks, unless no application had anything to bundle.
type Build struct{}

func (Build) Blocking(opts Options) bool {
	return opts.Bool("watch")
}

func (Build) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	production, watch := opts.Bool("production"), opts.Bool("watch")

	var started atomic.Int32
	err := fanOut(ctx, env, targets, func(ctx context.Context, t Target, w io.Writer) error {
		p, err := startBundler(ctx, env, t.Dir, production, watch)
		if err != nil {
			return err
		}
		if p == nil {
			if watch {
				fmt.Fprintf(w, "Nothing to bundle in %s.\n", t.Dir)
			}
			return nil
		}
		started.Add(1)
		if watch {
			return nil
		}
		return awaitSuccess(ctx, env, p)
	})
	if err == nil && watch && started.Load() == 0 {
		log.Info().Strs("apps", targetNames(targets)).Msg("nothing to bundle, not watching")
		return errIdle
	}
	return err
}

// startBundler spawns the bundler for dir, or returns nil when there is
// nothing to bundle.
func startBundler(ctx context.Context, env *Env, dir string, production, watch bool) (*supervisor.ManagedProcess, error) {
	spec, ok, err := bundlerSpec(env, dir, production, watch)
	if err != nil || !ok {
		return nil, err
	}
	return env.Supervisor.Spawn(ctx, spec)
}

// awaitSuccess waits for p and converts a non-zero exit into a
// *supervisor.SubordinateExitError. A cancelled wait terminates p.
func awaitSuccess(ctx context.Context, env *Env, p *supervisor.ManagedProcess) error {
	code, err := p.Wait(ctx)
	if err != nil {
		_ = env.Supervisor.Terminate(context.Background(), p)
		return err
	}
	if code != 0 {
		return &supervisor.SubordinateExitError{Name: p.Spec().Label(), Code: code}
	}
	return nil
}
