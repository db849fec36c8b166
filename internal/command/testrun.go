package command

import (
	"context"
	"maps"

	"github.com/opencode-ai/tails/internal/supervisor"
)

var testOptions = []Option{
	{Name: "tests", Short: "t", Kind: StringSlice, Usage: "Packages to test (repeatable, default ./...)"},
}

// Test runs go test in the application directory with TEST=1 set, and
// fails with go test's exit status.
type Test struct{}

func (Test) Blocking(Options) bool { return false }

func (Test) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	t := targets[0]
	pkgs := opts.Strings("tests")
	if len(pkgs) == 0 {
		pkgs = []string{"./..."}
	}

	vars := maps.Clone(env.ChildEnv)
	if vars == nil {
		vars = make(map[string]string)
	}
	vars["TEST"] = "1"

	p, err := env.Supervisor.Spawn(ctx, supervisor.InvocationSpec{
		Name: "go test",
		Path: goTool,
		Args: append([]string{"test"}, pkgs...),
		Env:  vars,
		Dir:  t.Dir,
	})
	if err != nil {
		return err
	}
	return awaitSuccess(ctx, env, p)
}

// goTool is the go command; tests point it elsewhere.
var goTool = "go"
