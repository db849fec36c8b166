package command

import (
	"cmp"
	"context"
	"fmt"
	"strconv"

	"github.com/opencode-ai/tails/internal/event"
	"github.com/opencode-ai/tails/internal/reload"
	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/opencode-ai/tails/internal/watcher"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/rs/zerolog/log"
	"mvdan.cc/sh/v3/shell"
)

var serverOptions = []Option{
	{Name: "build", Kind: Bool, Default: false, Usage: "Run the bundler alongside the server"},
	{Name: "host", Kind: String, Default: "0.0.0.0", Usage: "Host to run the server on"},
	{Name: "port", Kind: Int, Default: 9000, Usage: "Port to run the server on"},
	{Name: "production", Kind: Bool, Default: false, Usage: "Run the server in production mode"},
	{Name: "watch", Kind: Bool, Default: false, Usage: "Reload the server when sources change"},
	{Name: "pattern", Kind: String, Default: "", Usage: "Glob of files that trigger a reload (default **/*.go)"},
	{Name: "dependency", Kind: StringSlice, Usage: "Run a dependency command alongside the server (repeatable)"},
	{Name: "worker", Kind: StringSlice, Usage: "Run an application worker alongside the server (repeatable)"},
}

// Server runs the application in a child process and keeps the orchestrator
// up. With --watch, source changes replace the server process.
type Server struct{}

func (Server) Blocking(Options) bool { return true }

func (Server) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	t := targets[0]
	cfg := app.RunConfig{
		App:        t.Name(),
		Host:       opts.String("host"),
		Port:       opts.Int("port"),
		Production: opts.Bool("production"),
	}
	watch := opts.Bool("watch")

	if cfg.Port < 0 || cfg.Port > 65535 {
		return argumentErrorf("", "server: invalid port %d", cfg.Port)
	}
	workers := opts.Strings("worker")
	if err := checkWorkers(t, workers); err != nil {
		return err
	}
	dependencies := make([][]string, 0, len(opts.Strings("dependency")))
	for _, dep := range opts.Strings("dependency") {
		fields, err := shell.Fields(dep, lookupEnv(env.ChildEnv))
		if err != nil || len(fields) == 0 {
			return argumentErrorf("", "server: invalid dependency %q", dep)
		}
		dependencies = append(dependencies, fields)
	}

	if !cfg.Production {
		fmt.Fprintf(env.stdout(), "Running %s on %s\n", cfg.App, cfg.Addr())
	}

	if opts.Bool("build") {
		if _, err := startBundler(ctx, env, t.Dir, cfg.Production, watch); err != nil {
			return err
		}
	}

	for _, name := range workers {
		_, err := env.Supervisor.Spawn(ctx, supervisor.InvocationSpec{
			Name: "worker:" + name,
			Path: env.Executable,
			Args: env.childArgs(t, WorkCommand, "--name", name),
			Env:  env.ChildEnv,
			Dir:  t.Dir,
		})
		if err != nil {
			return err
		}
	}

	for _, fields := range dependencies {
		_, err := env.Supervisor.Spawn(ctx, supervisor.InvocationSpec{
			Path: fields[0],
			Args: fields[1:],
			Env:  env.ChildEnv,
			Dir:  t.Dir,
		})
		if err != nil {
			return err
		}
	}

	controller := reload.New(env.Supervisor, serverFactory(env, t), cfg, reload.WithBus(env.Bus))
	if _, err := controller.Start(ctx); err != nil {
		return err
	}
	env.OnShutdown(func() {
		if err := controller.Stop(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to stop server")
		}
	})

	if watch {
		watchServer(ctx, env, t, controller, opts.String("pattern"))
	}
	return nil
}

// watchServer binds a watcher over the target directory to the controller.
// A watcher that cannot attach is reported; the server keeps running without
// reloads.
func watchServer(ctx context.Context, env *Env, t Target, controller *reload.Controller, pattern string) {
	var watchOpts []watcher.Option
	if env.Config != nil && env.Config.Watcher != nil {
		wc := env.Config.Watcher
		pattern = cmp.Or(pattern, wc.Pattern)
		if len(wc.Ignore) > 0 {
			watchOpts = append(watchOpts, watcher.WithIgnore(wc.Ignore...))
		}
	}
	watchOpts = append(watchOpts, watcher.WithBus(env.Bus))

	onChange := controller.OnChange(ctx)
	handler := func(ev watcher.Event) {
		fmt.Fprintf(env.stdout(), "%s changed, reloading\n", ev.Rel)
		onChange(ev)
	}

	sub, err := watcher.Watch(t.Dir, pattern, handler, watchOpts...)
	if err != nil {
		log.Error().Err(err).Str("app", t.Name()).Msg("file watcher unavailable, server will not reload")
		return
	}
	env.OnShutdown(func() {
		if err := sub.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop file watcher")
		}
	})

	env.OnShutdown(env.Bus.Subscribe(event.ReloadFailed, func(e event.Event) {
		data, _ := e.Data.(event.ReloadData)
		fmt.Fprintf(env.stderr(), "reload of %s failed: %s\n", data.App, data.Error)
	}))
}

// serverFactory re-runs the orchestrator with the hidden run command.
func serverFactory(env *Env, t Target) reload.Factory {
	return func(cfg app.RunConfig) supervisor.InvocationSpec {
		args := []string{"--host", cfg.Host, "--port", strconv.Itoa(cfg.Port)}
		if cfg.Production {
			args = append(args, "--production")
		}
		return supervisor.InvocationSpec{
			Name: "server",
			Path: env.Executable,
			Args: env.childArgs(t, RunCommand, args...),
			Env:  env.ChildEnv,
			Dir:  t.Dir,
		}
	}
}

func checkWorkers(t Target, names []string) error {
	if len(names) == 0 {
		return nil
	}
	wp, ok := t.App.(app.WorkerProvider)
	if !ok {
		return argumentErrorf("", "server: application %s has no workers", t.Name())
	}
	for _, name := range names {
		if _, ok := wp.Worker(name); !ok {
			return argumentErrorf("", "server: application %s has no worker %q", t.Name(), name)
		}
	}
	return nil
}
