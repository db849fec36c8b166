package command

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Command is a unit of work over one or more target applications.
type Command interface {
	// Run executes the command. It returns once the command's own work is
	// done; processes it leaves running stay registered with the
	// supervisor.
	Run(ctx context.Context, env *Env, targets []Target, opts Options) error
	// Blocking reports whether the orchestrator must stay up after Run
	// returns, until interrupted.
	Blocking(opts Options) bool
}

// Spec binds a command name and its option schema to an implementation.
type Spec struct {
	Name    string
	Usage   string
	Options []Option
	Command Command
	// Hidden commands are process entry points, not listed in help.
	Hidden bool
	// MultiTarget commands accept several applications and fan out.
	MultiTarget bool
}

// Help renders the usage text of the command.
func (s Spec) Help() string {
	fs, _ := s.flagSet()
	targets := "<app>"
	if s.MultiTarget {
		targets = "<app>..."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: tails %s %s [flags]\n\n%s\n", targets, s.Name, s.Usage)
	if fs.HasFlags() {
		sb.WriteString("\nFlags:\n")
		sb.WriteString(fs.FlagUsages())
	}
	return sb.String()
}

// Table is an ordered set of command specs. It is built once and never
// changes afterwards.
type Table struct {
	specs []Spec
}

// NewTable builds a table. Names must be unique.
func NewTable(specs ...Spec) (*Table, error) {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" || s.Command == nil {
			return nil, fmt.Errorf("command spec %q is incomplete", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate command %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &Table{specs: slices.Clone(specs)}, nil
}

// Lookup returns the spec registered under name.
func (t *Table) Lookup(name string) (Spec, bool) {
	i := slices.IndexFunc(t.specs, func(s Spec) bool { return s.Name == name })
	if i < 0 {
		return Spec{}, false
	}
	return t.specs[i], true
}

// Specs returns the specs in registration order.
func (t *Table) Specs() []Spec {
	return slices.Clone(t.specs)
}

// Names returns the names of visible commands.
func (t *Table) Names() []string {
	var names []string
	for _, s := range t.specs {
		if !s.Hidden {
			names = append(names, s.Name)
		}
	}
	return names
}

// DefaultTable returns the orchestrator's commands.
func DefaultTable() *Table {
	t, err := NewTable(
		Spec{
			Name:        "build",
			Usage:       "Run the bundler over the application's assets.",
			Options:     buildOptions,
			Command:     Build{},
			MultiTarget: true,
		},
		Spec{
			Name:        "migrate",
			Usage:       "Apply pending schema changes.",
			Options:     migrateOptions,
			Command:     Migrate{},
			MultiTarget: true,
		},
		Spec{
			Name:        "reset",
			Usage:       "Drop every table and re-apply the schema. Development databases only.",
			Options:     resetOptions,
			Command:     Reset{},
			MultiTarget: true,
		},
		Spec{
			Name:    "server",
			Usage:   "Run the application server, optionally reloading it on source changes.",
			Options: serverOptions,
			Command: Server{},
		},
		Spec{
			Name:    "test",
			Usage:   "Run the application's Go tests with TEST=1.",
			Options: testOptions,
			Command: Test{},
		},
		Spec{
			Name:    RunCommand,
			Usage:   "Serve the application in this process.",
			Options: runOptions,
			Command: Run{},
			Hidden:  true,
		},
		Spec{
			Name:    WorkCommand,
			Usage:   "Run one application worker in this process.",
			Options: workOptions,
			Command: Work{},
			Hidden:  true,
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}
