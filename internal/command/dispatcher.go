package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencode-ai/tails/pkg/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// Outcome describes a dispatched command.
type Outcome struct {
	Command string
	// Blocking is set when the orchestrator must park until interrupted.
	Blocking bool
	// Help is set when only usage was printed.
	Help bool
}

// Dispatcher routes command lines to the commands of a Table.
type Dispatcher struct {
	table *Table
	apps  *app.Registry
	env   *Env
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(table *Table, apps *app.Registry, env *Env) *Dispatcher {
	return &Dispatcher{table: table, apps: apps, env: env}
}

// Dispatch parses args of the form "<app>... <command> [flags]" and runs the
// command. Every *ArgumentError is returned before the command starts.
func (d *Dispatcher) Dispatch(ctx context.Context, args []string) (Outcome, error) {
	spec, targets, rest, err := d.resolve(args)
	if err != nil {
		return Outcome{}, err
	}

	fs, dest := spec.flagSet()
	fs.SetOutput(io.Discard)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprint(d.env.stdout(), spec.Help())
			return Outcome{Command: spec.Name, Help: true}, nil
		}
		return Outcome{}, argumentErrorf(spec.Help(), "%s: %v", spec.Name, err)
	}
	if fs.NArg() > 0 {
		return Outcome{}, argumentErrorf(spec.Help(), "%s: unexpected arguments %s", spec.Name, strings.Join(fs.Args(), " "))
	}

	opts, err := spec.collect(fs, dest, d.env.Config.CommandDefaults(spec.Name))
	if err != nil {
		return Outcome{}, argumentErrorf(spec.Help(), "%s: %v", spec.Name, err)
	}

	log.Debug().
		Str("command", spec.Name).
		Strs("targets", targetNames(targets)).
		Msg("dispatching command")

	if err := spec.Command.Run(ctx, d.env, targets, opts); err != nil {
		if errors.Is(err, errIdle) {
			return Outcome{Command: spec.Name}, nil
		}
		return Outcome{Command: spec.Name}, err
	}
	return Outcome{Command: spec.Name, Blocking: spec.Command.Blocking(opts)}, nil
}

// resolve splits args into targets, the command, and the command's own
// arguments. The first argument naming a command ends the target list.
func (d *Dispatcher) resolve(args []string) (Spec, []Target, []string, error) {
	idx := -1
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return Spec{}, nil, nil, argumentErrorf("", "flag %s given before the command; flags follow the command", arg)
		}
		if _, ok := d.table.Lookup(arg); ok {
			idx = i
			break
		}
	}

	if idx < 0 {
		// the command is expected last; report the last word that is not
		// an application
		for i := len(args) - 1; i >= 0; i-- {
			if !d.apps.Has(args[i]) {
				msg := fmt.Sprintf("unknown command %q", args[i])
				if s := app.Suggest(args[i], d.table.Names()); s != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", s)
				}
				return Spec{}, nil, nil, argumentErrorf("", "%s", msg)
			}
		}
		return Spec{}, nil, nil, argumentErrorf("", "missing command; expected one of: %s", strings.Join(d.table.Names(), ", "))
	}

	spec, _ := d.table.Lookup(args[idx])
	paths := args[:idx]
	if len(paths) == 0 {
		return Spec{}, nil, nil, argumentErrorf(spec.Help(), "%s: no application given", spec.Name)
	}
	if len(paths) > 1 && !spec.MultiTarget {
		return Spec{}, nil, nil, argumentErrorf(spec.Help(), "%s: takes exactly one application, got %d", spec.Name, len(paths))
	}

	targets := make([]Target, 0, len(paths))
	for _, path := range paths {
		a, err := d.apps.Lookup(path)
		if err != nil {
			return Spec{}, nil, nil, &ArgumentError{Err: err, Usage: spec.Help()}
		}
		t, err := NewTarget(a, path)
		if err != nil {
			return Spec{}, nil, nil, &ArgumentError{Err: err, Usage: spec.Help()}
		}
		targets = append(targets, t)
	}
	return spec, targets, args[idx+1:], nil
}

func targetNames(targets []Target) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name())
	}
	return names
}
