package command

import (
	"context"
	"fmt"
	"io"

	"github.com/opencode-ai/tails/pkg/schema"
	"github.com/rs/zerolog/log"
)

var resetOptions = []Option{
	{Name: "no-migrate", Kind: Bool, Default: false, Usage: "Only drop tables, do not re-apply the schema"},
}

// Reset drops every applied table, losing all data, and re-applies the
// schema from scratch. There is no confirmation prompt.
type Reset struct{}

func (Reset) Blocking(Options) bool { return false }

func (Reset) Run(ctx context.Context, env *Env, targets []Target, opts Options) error {
	noMigrate := opts.Bool("no-migrate")

	return fanOut(ctx, env, targets, func(ctx context.Context, t Target, out io.Writer) error {
		def, err := definition(t)
		if err != nil {
			return err
		}

		migrator := env.Migrator(t)
		dropped, err := migrator.DropAll(ctx)
		if err != nil {
			return fmt.Errorf("reset %s: %w", t.Name(), err)
		}
		log.Warn().Str("app", t.Name()).Int("tables", len(dropped)).Msg("dropped all tables")
		for _, s := range dropped {
			fmt.Fprintln(out, s.SQL)
		}
		if noMigrate {
			return nil
		}

		result, err := migrator.Migrate(ctx, def, schema.MigrateOptions{Execute: true})
		if err != nil {
			return fmt.Errorf("reset %s: %w", t.Name(), err)
		}
		fmt.Fprint(out, result)
		return nil
	})
}
