// Package schema describes an application's persisted tables and plans the
// statements that bring applied state in line with a definition.
//
// Applications expose a Definition; the orchestrator hands it to a Migrator
// with execute or dry-run semantics. FileMigrator is the default Migrator and
// keeps applied state as JSON documents in the orchestrator's state dir.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Column is one column of a table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable,omitempty"`
	PrimaryKey bool   `json:"primaryKey,omitempty"`
}

// Table is a named set of columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Definition is the full desired schema of an application.
type Definition struct {
	Tables []Table `json:"tables"`
}

// Validate checks that every table and column is named and typed, and that
// names are unique.
func (d Definition) Validate() error {
	var errs []error
	tables := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if t.Name == "" {
			errs = append(errs, errors.New("table with empty name"))
			continue
		}
		if tables[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate table %q", t.Name))
		}
		tables[t.Name] = true

		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Errorf("table %q has no columns", t.Name))
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			switch {
			case c.Name == "":
				errs = append(errs, fmt.Errorf("table %q: column with empty name", t.Name))
			case c.Type == "":
				errs = append(errs, fmt.Errorf("table %q: column %q has no type", t.Name, c.Name))
			case cols[c.Name]:
				errs = append(errs, fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name))
			}
			cols[c.Name] = true
		}
	}
	return errors.Join(errs...)
}

// Table returns the named table.
func (d Definition) Table(name string) (Table, bool) {
	i := slices.IndexFunc(d.Tables, func(t Table) bool { return t.Name == name })
	if i < 0 {
		return Table{}, false
	}
	return d.Tables[i], true
}

// SQL renders the definition as CREATE TABLE statements ordered by table
// name, so two definitions with the same tables render identically.
func (d Definition) SQL() string {
	tables := slices.Clone(d.Tables)
	slices.SortFunc(tables, func(a, b Table) int { return strings.Compare(a.Name, b.Name) })

	var sb strings.Builder
	for _, t := range tables {
		sb.WriteString(t.SQL())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

// SQL renders the table's CREATE TABLE statement, one column per line.
func (t Table) SQL() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", t.Name)
	for i, c := range t.Columns {
		sb.WriteString("  ")
		sb.WriteString(c.SQL())
		if i < len(t.Columns)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(");")
	return sb.String()
}

// SQL renders the column definition.
func (c Column) SQL() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteString(" ")
	sb.WriteString(strings.ToUpper(c.Type))
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}
