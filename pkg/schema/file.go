package schema

import (
	"context"
	"fmt"

	"github.com/opencode-ai/tails/internal/storage"
)

var tablesKey = []string{"tables"}

// FileMigrator keeps applied tables as JSON documents under a directory.
// Writes are file-locked, so concurrent orchestrator runs against the same
// directory do not corrupt state.
type FileMigrator struct {
	store *storage.Storage
}

// NewFileMigrator returns a FileMigrator rooted at dir.
func NewFileMigrator(dir string) *FileMigrator {
	return &FileMigrator{store: storage.New(dir)}
}

// Dir returns the state directory.
func (m *FileMigrator) Dir() string {
	return m.store.Base()
}

// Current loads the applied definition, ordered by table name.
func (m *FileMigrator) Current(ctx context.Context) (Definition, error) {
	names, err := m.store.List(ctx, tablesKey)
	if err != nil {
		return Definition{}, fmt.Errorf("list applied tables: %w", err)
	}

	def := Definition{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		var t Table
		if err := m.store.Get(ctx, tableKey(name), &t); err != nil {
			return Definition{}, fmt.Errorf("load table %s: %w", name, err)
		}
		def.Tables = append(def.Tables, t)
	}
	return def, nil
}

// Migrate plans against the applied state and, with opts.Execute, applies
// the plan table by table.
func (m *FileMigrator) Migrate(ctx context.Context, def Definition, opts MigrateOptions) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	current, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}

	plan := Diff(current, def)
	result := &Result{Plan: plan}
	if !opts.Execute || !plan.Pending() {
		return result, nil
	}

	touched := make(map[string]bool)
	for _, stmt := range plan.Statements {
		if opts.Trace != nil {
			opts.Trace(stmt)
		}
		if touched[stmt.Table] {
			continue
		}
		touched[stmt.Table] = true

		t, _ := def.Table(stmt.Table)
		if err := m.store.Put(ctx, tableKey(t.Name), t); err != nil {
			return nil, fmt.Errorf("apply %s: %w", stmt.SQL, err)
		}
	}
	result.Executed = true
	return result, nil
}

// DropAll deletes every applied table.
func (m *FileMigrator) DropAll(ctx context.Context) ([]Statement, error) {
	names, err := m.store.List(ctx, tablesKey)
	if err != nil {
		return nil, fmt.Errorf("list applied tables: %w", err)
	}

	stmts := make([]Statement, 0, len(names))
	for _, name := range names {
		if err := m.store.Delete(ctx, tableKey(name)); err != nil {
			return stmts, fmt.Errorf("drop table %s: %w", name, err)
		}
		stmts = append(stmts, Statement{
			Kind:  DropTable,
			Table: name,
			SQL:   fmt.Sprintf("DROP TABLE %s;", name),
		})
	}
	return stmts, nil
}

func tableKey(name string) []string {
	return []string{"tables", name}
}
