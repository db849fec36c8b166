package command

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/opencode-ai/tails/pkg/app"
	"github.com/opencode-ai/tails/pkg/schema"
	"golang.org/x/sync/errgroup"
)

var migrateOptions = []Option{
	{Name: "dry-run", Kind: Bool, Default: false, Usage: "Show pending changes without executing any statement"},
	{Name: "debug", Kind: Bool, Default: false, Usage: "Print statements as they are executed"},
}

// Migrate applies pending schema changes and prints what changed.
type Migrate struct{}

func (Migrate) Blocking(Options) bool { return false }

func (Migrate) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	dryRun, debug := opts.Bool("dry-run"), opts.Bool("debug")

	return fanOut(ctx, env, targets, func(ctx context.Context, t Target, out io.Writer) error {
		def, err := definition(t)
		if err != nil {
			return err
		}

		mo := schema.MigrateOptions{Execute: !dryRun}
		if debug {
			mo.Trace = func(s schema.Statement) {
				fmt.Fprintf(out, "-- executing\n%s\n", s.SQL)
			}
		}

		result, err := env.Migrator(t).Migrate(ctx, def, mo)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", t.Name(), err)
		}
		fmt.Fprint(out, result)
		return nil
	})
}

func definition(t Target) (schema.Definition, error) {
	sp, ok := t.App.(app.SchemaProvider)
	if !ok {
		return schema.Definition{}, fmt.Errorf("application %s has no schema", t.Name())
	}
	return sp.Schema(), nil
}

// fanOut runs fn for every target concurrently. Output is buffered per
// target and written in target order, headed by the application name when
// there is more than one.
func fanOut(ctx context.Context, env *Env, targets []Target, fn func(context.Context, Target, io.Writer) error) error {
	bufs := make([]bytes.Buffer, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			return fn(ctx, t, &bufs[i])
		})
	}
	err := g.Wait()

	w := env.stdout()
	for i, t := range targets {
		if bufs[i].Len() == 0 {
			continue
		}
		if len(targets) > 1 {
			fmt.Fprintf(w, "== %s ==\n", t.Name())
		}
		w.Write(bufs[i].Bytes())
	}
	return err
}
