// Package tails is the orchestrator's entry point. A project builds its own
// binary by registering its applications:
//
//	func main() {
//		tails.Main(blog.New(), shop.New())
//	}
//
// The same binary is re-executed for the server and worker processes, so
// applications never have to be loaded by name.
package tails

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/opencode-ai/tails/internal/command"
	"github.com/opencode-ai/tails/internal/config"
	"github.com/opencode-ai/tails/internal/event"
	"github.com/opencode-ai/tails/internal/logging"
	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Main runs the orchestrator over apps and exits the process. An interrupt
// or SIGTERM cancels the run; every child is terminated before exit.
func Main(apps ...app.App) {
	reg, err := app.NewRegistry(apps...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tails:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := Run(ctx, reg, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes one command line and returns the process exit status. It
// returns only after every process it started has been terminated. Blocking
// commands keep it running until ctx is cancelled.
func Run(ctx context.Context, reg *app.Registry, args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		logLevel   string
		printLogs  bool
		err        error
	)

	root := &cobra.Command{
		Use:   "tails [flags] <app>... <command> [command flags]",
		Short: "tails - development process orchestrator",
		Long: `tails runs the build, migration and server processes of a web application
during development, and reloads the server when sources change.

Commands:
  build     Run the bundler over the application's assets
  migrate   Apply pending schema changes
  reset     Drop every table and re-apply the schema
  server    Run the application server
  test      Run the application's Go tests

Run 'tails <app> <command> --help' for the flags of a command.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return orchestrate(cmd.Context(), reg, args, options{
				configPath: configPath,
				logLevel:   logLevel,
				printLogs:  printLogs,
				stdout:     stdout,
				stderr:     stderr,
			})
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	root.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	// everything after the first application belongs to the dispatcher
	root.Flags().SetInterspersed(false)
	root.SetVersionTemplate(fmt.Sprintf("tails %s (%s)\n", Version, BuildTime))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err = root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "tails:", err)
		var argErr *command.ArgumentError
		if errors.As(err, &argErr) && argErr.Usage != "" {
			fmt.Fprint(stderr, "\n"+argErr.Usage)
		}
	}
	return ExitCode(err)
}

type options struct {
	configPath string
	logLevel   string
	printLogs  bool
	stdout     io.Writer
	stderr     io.Writer
}

// orchestrate wires configuration, logging and the supervisor, dispatches
// the command, and parks for blocking commands. The deferred sweep runs on
// every return path, including panics.
func orchestrate(ctx context.Context, reg *app.Registry, args []string, opts options) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	if opts.configPath != "" {
		if opts.configPath, err = filepath.Abs(opts.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load(workDir, opts.configPath)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	level := logging.ParseLevel(firstNonEmpty(opts.logLevel, cfg.LogLevel, "INFO"))
	closeLog, err := initLogging(level, opts.printLogs, opts.stderr, paths.LogPath(), logComponent(args))
	if err != nil {
		return err
	}
	defer closeLog()

	childEnv, err := config.LoadEnv(workDir, cfg)
	if err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate orchestrator executable: %w", err)
	}

	childArgs := []string{"--log-level", level.String()}
	if opts.printLogs {
		childArgs = append(childArgs, "--print-logs")
	}
	if opts.configPath != "" {
		childArgs = append(childArgs, "--config", opts.configPath)
	}

	bus := event.NewBus()
	sup := supervisor.New(
		supervisor.WithKillGrace(cfg.KillGrace()),
		supervisor.WithBus(bus),
		supervisor.WithOutput(opts.stdout, opts.stderr),
	)
	env := &command.Env{
		Supervisor: sup,
		Bus:        bus,
		Config:     cfg,
		Executable: executable,
		ChildArgs:  childArgs,
		ChildEnv:   childEnv,
		StateDir:   firstNonEmpty(cfg.StateDir, paths.SchemaPath()),
		Stdout:     opts.stdout,
		Stderr:     opts.stderr,
	}
	defer func() {
		env.Shutdown()
		if err := sup.TerminateAll(); err != nil {
			log.Error().Err(err).Msg("some child processes could not be terminated")
		}
		bus.Close()
	}()

	if level <= logging.DebugLevel {
		traceEvents(ctx, bus)
	}

	outcome, err := command.NewDispatcher(command.DefaultTable(), reg, env).Dispatch(ctx, args)
	if err != nil {
		return err
	}
	if outcome.Blocking {
		log.Debug().Str("command", outcome.Command).Msg("waiting for interrupt")
		<-ctx.Done()
		log.Debug().Msg("shutting down")
	}
	return nil
}

// initLogging sends logs to stderr with printLogs, otherwise appends them to
// the log file. The returned func closes the file.
func initLogging(level logging.Level, printLogs bool, stderr io.Writer, logPath, component string) (func(), error) {
	if printLogs {
		cfg := logging.DefaultConfig()
		cfg.Level = level
		cfg.Output = stderr
		cfg.Component = component
		logging.Init(cfg)
		return func() {}, nil
	}

	f, err := logging.OpenFile(logPath)
	if err != nil {
		return nil, err
	}
	cfg := logging.FileConfig(level, f)
	cfg.Component = component
	logging.Init(cfg)
	return func() { f.Close() }, nil
}

// logComponent tags the entries of re-executed server and worker processes.
// Their command line is always <app> <hidden command> [flags].
func logComponent(args []string) string {
	if len(args) < 2 {
		return ""
	}
	switch args[1] {
	case command.RunCommand:
		return "server"
	case command.WorkCommand:
		return "worker"
	}
	return ""
}

// traceEvents logs every lifecycle event from the bus journal.
func traceEvents(ctx context.Context, bus *event.Bus) {
	journal, err := bus.Journal(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("event journal unavailable")
		return
	}
	go func() {
		for msg := range journal {
			log.Debug().
				Str("event", msg.Metadata.Get("type")).
				Str("id", msg.UUID).
				RawJSON("payload", msg.Payload).
				Msg("lifecycle event")
		}
	}()
}

// ExitCode maps an error from Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var argErr *command.ArgumentError
	if errors.As(err, &argErr) {
		return 2
	}
	var exitErr *supervisor.SubordinateExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
