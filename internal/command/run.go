package command

import (
	"context"
	"fmt"

	"github.com/opencode-ai/tails/internal/logging"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/rs/zerolog"
)

// Hidden commands the orchestrator runs in its child processes.
const (
	RunCommand  = "run"
	WorkCommand = "work"
)

var runOptions = []Option{
	{Name: "host", Kind: String, Default: "0.0.0.0", Usage: "Host to listen on"},
	{Name: "port", Kind: Int, Default: 9000, Usage: "Port to listen on"},
	{Name: "production", Kind: Bool, Default: false, Usage: "Production mode"},
}

var workOptions = []Option{
	{Name: "name", Kind: String, Usage: "Worker to run"},
}

// Run serves the application in the current process until ctx is cancelled.
type Run struct{}

func (Run) Blocking(Options) bool { return false }

func (Run) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	t := targets[0]
	cfg := app.RunConfig{
		App:        t.Name(),
		Host:       opts.String("host"),
		Port:       opts.Int("port"),
		Production: opts.Bool("production"),
	}

	logger := logging.With().
		Str("app", cfg.App).
		Str("mode", cfg.Mode()).
		Logger()
	// production servers never log below info
	if cfg.Production && logger.GetLevel() < zerolog.InfoLevel {
		logger = logger.Level(zerolog.InfoLevel)
	}

	logger.Info().Str("addr", cfg.Addr()).Msg("serving")
	if err := t.App.Serve(logger.WithContext(ctx), cfg); err != nil {
		return fmt.Errorf("serve %s: %w", cfg.App, err)
	}
	return nil
}

// Work runs one application worker in the current process until ctx is
// cancelled.
type Work struct{}

func (Work) Blocking(Options) bool { return false }

func (Work) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	t := targets[0]
	name := opts.String("name")
	if err := checkWorkers(t, []string{name}); err != nil {
		return err
	}
	wp := t.App.(app.WorkerProvider)
	worker, _ := wp.Worker(name)

	logger := logging.With().Str("app", t.Name()).Str("worker", name).Logger()
	logger.Info().Msg("worker started")
	if err := worker(logger.WithContext(ctx)); err != nil && ctx.Err() == nil {
		return fmt.Errorf("worker %s: %w", name, err)
	}
	return nil
}
