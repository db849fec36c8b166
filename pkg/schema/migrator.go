package schema

import (
	"context"
	"fmt"
	"strings"
)

// MigrateOptions controls a migration run.
type MigrateOptions struct {
	// Execute applies the plan; false is a dry run.
	Execute bool
	// Trace, when set, is called with each statement as it is applied.
	Trace func(Statement)
}

// Migrator plans and applies schema changes for one application.
type Migrator interface {
	// Migrate brings applied state in line with def.
	Migrate(ctx context.Context, def Definition, opts MigrateOptions) (*Result, error)
	// DropAll removes every applied table and returns the statements run.
	DropAll(ctx context.Context) ([]Statement, error)
}

// Result describes a migration run.
type Result struct {
	Plan     Plan
	Executed bool
}

// String renders the result for the operator: the schema diff, the
// statements, and a summary line.
func (r *Result) String() string {
	if !r.Plan.Pending() {
		return "Schema is up to date.\n"
	}

	var sb strings.Builder
	diff, added, removed := buildDiff(r.Plan.from.SQL(), r.Plan.to.SQL())
	sb.WriteString(diff)
	sb.WriteString("\n")
	sb.WriteString(r.Plan.SQL())
	sb.WriteString("\n\n")

	verb := "pending"
	if r.Executed {
		verb = "applied"
	}
	fmt.Fprintf(&sb, "%d statement(s) %s (+%d -%d lines).\n", len(r.Plan.Statements), verb, added, removed)
	return sb.String()
}
