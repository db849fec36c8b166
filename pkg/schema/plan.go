package schema

import (
	"fmt"
	"strings"
)

// StatementKind is the kind of change a Statement makes.
type StatementKind string

const (
	CreateTable StatementKind = "create_table"
	AddColumn   StatementKind = "add_column"
	AlterColumn StatementKind = "alter_column"
	DropColumn  StatementKind = "drop_column"
	DropTable   StatementKind = "drop_table"
)

// Statement is one schema change.
type Statement struct {
	Kind   StatementKind `json:"kind"`
	Table  string        `json:"table"`
	Column string        `json:"column,omitempty"`
	SQL    string        `json:"sql"`
}

func (s Statement) String() string {
	return s.SQL
}

// Plan is the ordered set of statements that turns one definition into
// another.
type Plan struct {
	Statements []Statement

	from Definition
	to   Definition
}

// Diff plans the statements that bring current in line with target. Tables
// present only in current are left alone; reset is the way to drop them.
func Diff(current, target Definition) Plan {
	plan := Plan{from: current, to: target}

	for _, want := range target.Tables {
		have, ok := current.Table(want.Name)
		if !ok {
			plan.Statements = append(plan.Statements, Statement{
				Kind:  CreateTable,
				Table: want.Name,
				SQL:   want.SQL(),
			})
			continue
		}

		for _, col := range want.Columns {
			existing, ok := have.Column(col.Name)
			switch {
			case !ok:
				plan.Statements = append(plan.Statements, Statement{
					Kind:   AddColumn,
					Table:  want.Name,
					Column: col.Name,
					SQL:    fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", want.Name, col.SQL()),
				})
			case existing != col:
				plan.Statements = append(plan.Statements, Statement{
					Kind:   AlterColumn,
					Table:  want.Name,
					Column: col.Name,
					SQL:    fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s;", want.Name, col.SQL()),
				})
			}
		}
		for _, col := range have.Columns {
			if _, ok := want.Column(col.Name); !ok {
				plan.Statements = append(plan.Statements, Statement{
					Kind:   DropColumn,
					Table:  want.Name,
					Column: col.Name,
					SQL:    fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", want.Name, col.Name),
				})
			}
		}
	}
	return plan
}

// Pending reports whether the plan changes anything.
func (p Plan) Pending() bool {
	return len(p.Statements) > 0
}

// Diff renders the change between the two schemas as a text patch.
func (p Plan) Diff() string {
	text, _, _ := buildDiff(p.from.SQL(), p.to.SQL())
	return text
}

// SQL joins the statements, one per line.
func (p Plan) SQL() string {
	lines := make([]string, 0, len(p.Statements))
	for _, s := range p.Statements {
		lines = append(lines, s.SQL)
	}
	return strings.Join(lines, "\n")
}
