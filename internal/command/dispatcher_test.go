package command

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/opencode-ai/tails/internal/supervisor"
	"github.com/opencode-ai/tails/pkg/app"
	"github.com/opencode-ai/tails/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordCommand struct {
	calls   int
	targets []Target
	opts    Options
	block   bool
	err     error
}

func (c *recordCommand) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	c.calls++
	c.targets = targets
	c.opts = opts
	return c.err
}

func (c *recordCommand) Blocking(Options) bool { return c.block }

type fixture struct {
	dispatcher *Dispatcher
	env        *Env
	out        *bytes.Buffer
	one        *recordCommand
	many       *recordCommand
}

func newFixture(t *testing.T, cfg *types.Config) *fixture {
	t.Helper()

	one := &recordCommand{block: true}
	many := &recordCommand{}
	table, err := NewTable(
		Spec{Name: "serve", Usage: "serve it", Command: one, Options: []Option{
			{Name: "port", Kind: Int, Default: 9000},
			{Name: "watch", Kind: Bool},
		}},
		Spec{Name: "sync", Usage: "sync them", Command: many, MultiTarget: true},
	)
	require.NoError(t, err)

	reg, err := app.NewRegistry(&testApp{name: "blog"}, &testApp{name: "shop"})
	require.NoError(t, err)

	sup := supervisor.New()
	t.Cleanup(func() { sup.TerminateAll() })

	out := &bytes.Buffer{}
	env := &Env{Supervisor: sup, Config: cfg, Stdout: out, Stderr: out}
	return &fixture{
		dispatcher: NewDispatcher(table, reg, env),
		env:        env,
		out:        out,
		one:        one,
		many:       many,
	}
}

func requireArgumentError(t *testing.T, err error) *ArgumentError {
	t.Helper()
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr), "expected ArgumentError, got %v", err)
	return argErr
}

func TestDispatchRunsCommand(t *testing.T) {
	f := newFixture(t, nil)

	outcome, err := f.dispatcher.Dispatch(context.Background(), []string{"./apps/blog", "serve", "--port", "8000", "--watch"})
	require.NoError(t, err)

	assert.Equal(t, Outcome{Command: "serve", Blocking: true}, outcome)
	assert.Equal(t, 1, f.one.calls)
	require.Len(t, f.one.targets, 1)
	assert.Equal(t, "blog", f.one.targets[0].Name())
	assert.Equal(t, "./apps/blog", f.one.targets[0].Path)
	assert.Equal(t, 8000, f.one.opts.Int("port"))
	assert.True(t, f.one.opts.Bool("watch"))
}

func TestDispatchMultipleTargets(t *testing.T) {
	f := newFixture(t, nil)

	outcome, err := f.dispatcher.Dispatch(context.Background(), []string{"blog", "shop", "sync"})
	require.NoError(t, err)
	assert.False(t, outcome.Blocking)
	assert.Equal(t, []string{"blog", "shop"}, targetNames(f.many.targets))
}

func TestDispatchSingleTargetCommandRejectsMany(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.dispatcher.Dispatch(context.Background(), []string{"blog", "shop", "serve"})
	argErr := requireArgumentError(t, err)
	assert.Contains(t, argErr.Error(), "exactly one application")
	assert.Contains(t, argErr.Usage, "Usage: tails <app> serve")
	assert.Zero(t, f.one.calls)
}

func TestDispatchArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no arguments", nil, "missing command"},
		{"only an app", []string{"blog"}, "missing command"},
		{"unknown command", []string{"blog", "deploy"}, `unknown command "deploy"`},
		{"misspelled command", []string{"blog", "serv"}, `did you mean "serve"`},
		{"unknown app", []string{"blgo", "serve"}, `did you mean "blog"`},
		{"no app", []string{"serve"}, "no application given"},
		{"flag before command", []string{"blog", "--port", "1", "serve"}, "before the command"},
		{"unknown flag", []string{"blog", "serve", "--verbose"}, "unknown flag"},
		{"bad flag type", []string{"blog", "serve", "--port", "http"}, "invalid argument"},
		{"extra positional", []string{"blog", "serve", "now"}, "unexpected arguments now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.dispatcher.Dispatch(context.Background(), tt.args)
			argErr := requireArgumentError(t, err)
			assert.Contains(t, argErr.Error(), tt.want)
			assert.Zero(t, f.one.calls+f.many.calls, "no command may run")
			assert.Empty(t, f.env.Supervisor.Processes(), "nothing may be spawned")
		})
	}
}

func TestDispatchHelp(t *testing.T) {
	f := newFixture(t, nil)

	outcome, err := f.dispatcher.Dispatch(context.Background(), []string{"blog", "serve", "--help"})
	require.NoError(t, err)
	assert.True(t, outcome.Help)
	assert.False(t, outcome.Blocking)
	assert.Zero(t, f.one.calls)
	assert.Contains(t, f.out.String(), "--port")
}

func TestDispatchConfigDefaults(t *testing.T) {
	f := newFixture(t, &types.Config{Commands: map[string]map[string]any{
		"serve": {"port": float64(7000), "watch": true},
	}})

	_, err := f.dispatcher.Dispatch(context.Background(), []string{"blog", "serve", "--port", "7100"})
	require.NoError(t, err)
	assert.Equal(t, 7100, f.one.opts.Int("port"))
	assert.True(t, f.one.opts.Bool("watch"))
}

func TestDispatchBadConfigDefault(t *testing.T) {
	f := newFixture(t, &types.Config{Commands: map[string]map[string]any{
		"serve": {"port": "many"},
	}})

	_, err := f.dispatcher.Dispatch(context.Background(), []string{"blog", "serve"})
	requireArgumentError(t, err)
	assert.Zero(t, f.one.calls)
}

func TestDispatchCommandFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.one.err = errors.New("boom")

	outcome, err := f.dispatcher.Dispatch(context.Background(), []string{"blog", "serve"})
	assert.EqualError(t, err, "boom")
	assert.False(t, outcome.Blocking)
}

func TestNewTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable(Spec{Name: "a", Command: &recordCommand{}}, Spec{Name: "a", Command: &recordCommand{}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewTable(Spec{Name: "a"})
	assert.Error(t, err)
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, []string{"build", "migrate", "reset", "server", "test"}, table.Names())

	run, ok := table.Lookup(RunCommand)
	require.True(t, ok)
	assert.True(t, run.Hidden)

	server, ok := table.Lookup("server")
	require.True(t, ok)
	assert.False(t, server.MultiTarget)
	help := server.Help()
	for _, flag := range []string{"--build", "--host", "--port", "--production", "--watch", "--dependency", "--worker"} {
		assert.Contains(t, help, flag)
	}
}

func TestEnvShutdownOrder(t *testing.T) {
	env := &Env{}
	var order []int
	env.OnShutdown(func() { order = append(order, 1) })
	env.OnShutdown(func() { order = append(order, 2) })

	env.Shutdown()
	env.Shutdown()
	assert.Equal(t, []int{2, 1}, order)
}
