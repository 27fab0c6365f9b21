package migrate

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/playsync/internal/models"
)

// Step is one primitive transform inside a migration.
type Step interface {
	Describe() string
	Apply(ctx context.Context, q Querier) error
}

// CreateTable creates a table and its indexes.
type CreateTable struct {
	Table models.Table
}

func (s CreateTable) Describe() string { return "create table " + s.Table.Name }

func (s CreateTable) Apply(ctx context.Context, q Querier) error {
	if err := validateTable(s.Table); err != nil {
		return err
	}
	stmts := []string{createTableSQL(s.Table)}
	for _, idx := range s.Table.Indexes {
		stmts = append(stmts, createIndexSQL(s.Table.Name, idx))
	}
	return execAll(ctx, q, stmts...)
}

func validateTable(t models.Table) error {
	if len(t.Columns) == 0 {
		return models.Violation(t.Name, "Columns", "table has no columns")
	}
	for _, fk := range t.ForeignKeys {
		if !t.HasColumn(fk.Column) {
			return models.Violation(t.Name, fk.Column, "foreign key on undeclared column")
		}
	}
	for _, idx := range t.Indexes {
		for _, c := range idx.Columns {
			if !t.HasColumn(c) {
				return models.Violation(t.Name, c, "index "+idx.Name+" on undeclared column")
			}
		}
	}
	return nil
}

// DropTable drops a table with its indexes and triggers.
type DropTable struct {
	Name string
}

func (s DropTable) Describe() string { return "drop table " + s.Name }

func (s DropTable) Apply(ctx context.Context, q Querier) error {
	return execAll(ctx, q, "DROP TABLE "+quoteIdent(s.Name))
}

// AddColumn adds a column, optionally carrying a foreign key.
//
// Existing rows receive the column default. A NOT NULL column without a default can only be added
// to an empty table; otherwise the step fails with [ErrBackfillRequired].
type AddColumn struct {
	Table      string
	Column     models.Column
	ForeignKey *models.ForeignKey
}

func (s AddColumn) Describe() string {
	return fmt.Sprintf("add column %s.%s", s.Table, s.Column.Name)
}

func (s AddColumn) Apply(ctx context.Context, q Querier) error {
	if s.Column.PrimaryKey {
		return models.Violation(s.Table, s.Column.Name, "cannot add a primary key column")
	}
	if s.ForeignKey != nil && s.ForeignKey.Column != s.Column.Name {
		return models.Violation(s.Table, s.Column.Name, "foreign key declared on "+s.ForeignKey.Column)
	}

	if s.Column.Nullable || s.Column.Default != nil {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(s.Table), columnSQL(s.Column))
		if s.ForeignKey != nil {
			stmt += " " + referenceSQL(*s.ForeignKey)
		}
		return execAll(ctx, q, stmt)
	}

	n, err := countRows(ctx, q, "SELECT COUNT(*) FROM "+quoteIdent(s.Table))
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s.%s is NOT NULL without a default and %d rows exist", ErrBackfillRequired, s.Table, s.Column.Name, n)
	}

	return rebuildTable(ctx, q, s.Table, func(t *models.Table) error {
		t.Columns = append(t.Columns, s.Column)
		if s.ForeignKey != nil {
			t.ForeignKeys = append(t.ForeignKeys, *s.ForeignKey)
		}
		return nil
	})
}

// DropColumn removes a column together with its foreign key and any index covering it.
type DropColumn struct {
	Table  string
	Column string
}

func (s DropColumn) Describe() string {
	return fmt.Sprintf("drop column %s.%s", s.Table, s.Column)
}

func (s DropColumn) Apply(ctx context.Context, q Querier) error {
	return rebuildTable(ctx, q, s.Table, func(t *models.Table) error {
		if !t.HasColumn(s.Column) {
			return fmt.Errorf("column %s.%s does not exist", s.Table, s.Column)
		}
		t.Columns = slices.DeleteFunc(t.Columns, func(c models.Column) bool { return c.Name == s.Column })
		t.ForeignKeys = slices.DeleteFunc(t.ForeignKeys, func(fk models.ForeignKey) bool { return fk.Column == s.Column })
		t.Indexes = slices.DeleteFunc(t.Indexes, func(idx models.Index) bool { return slices.Contains(idx.Columns, s.Column) })
		return nil
	})
}

// AlterNullability tightens or loosens a column's NOT NULL constraint.
//
// Tightening rewrites NULL rows to Backfill first. With NULL rows present and Backfill nil the step
// fails with [ErrBackfillRequired] and leaves the rows untouched. Loosening always succeeds.
type AlterNullability struct {
	Table    string
	Column   string
	Nullable bool
	Backfill any
}

func (s AlterNullability) Describe() string {
	if s.Nullable {
		return fmt.Sprintf("make %s.%s nullable", s.Table, s.Column)
	}
	return fmt.Sprintf("make %s.%s not null", s.Table, s.Column)
}

func (s AlterNullability) Apply(ctx context.Context, q Querier) error {
	if !s.Nullable {
		nulls, err := countRows(ctx, q,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", quoteIdent(s.Table), quoteIdent(s.Column)))
		if err != nil {
			return err
		}
		if nulls > 0 {
			if s.Backfill == nil {
				return fmt.Errorf("%w: %d rows of %s have NULL %s", ErrBackfillRequired, nulls, s.Table, s.Column)
			}
			stmt := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IS NULL", quoteIdent(s.Table), quoteIdent(s.Column), quoteIdent(s.Column))
			if _, err := q.ExecContext(ctx, stmt, s.Backfill); err != nil {
				return err
			}
		}
	}

	return rebuildTable(ctx, q, s.Table, func(t *models.Table) error {
		i := slices.IndexFunc(t.Columns, func(c models.Column) bool { return c.Name == s.Column })
		if i < 0 {
			return fmt.Errorf("column %s.%s does not exist", s.Table, s.Column)
		}
		t.Columns[i].Nullable = s.Nullable
		return nil
	})
}

// AlterDefault replaces a column's default. A nil Default removes it.
type AlterDefault struct {
	Table   string
	Column  string
	Default *string
}

func (s AlterDefault) Describe() string {
	if s.Default == nil {
		return fmt.Sprintf("drop default of %s.%s", s.Table, s.Column)
	}
	return fmt.Sprintf("set default of %s.%s to %s", s.Table, s.Column, *s.Default)
}

func (s AlterDefault) Apply(ctx context.Context, q Querier) error {
	return rebuildTable(ctx, q, s.Table, func(t *models.Table) error {
		i := slices.IndexFunc(t.Columns, func(c models.Column) bool { return c.Name == s.Column })
		if i < 0 {
			return fmt.Errorf("column %s.%s does not exist", s.Table, s.Column)
		}
		t.Columns[i].Default = s.Default
		return nil
	})
}

// RenameColumn renames a column. Indexes and foreign keys follow the new name.
type RenameColumn struct {
	Table string
	From  string
	To    string
}

func (s RenameColumn) Describe() string {
	return fmt.Sprintf("rename column %s.%s to %s", s.Table, s.From, s.To)
}

func (s RenameColumn) Apply(ctx context.Context, q Querier) error {
	return execAll(ctx, q, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		quoteIdent(s.Table), quoteIdent(s.From), quoteIdent(s.To)))
}

// CreateIndex creates a secondary index on Table.
type CreateIndex struct {
	Table string
	Index models.Index
}

func (s CreateIndex) Describe() string { return "create index " + s.Index.Name }

func (s CreateIndex) Apply(ctx context.Context, q Querier) error {
	return execAll(ctx, q, createIndexSQL(s.Table, s.Index))
}

// DropIndex drops an index if it exists.
type DropIndex struct {
	Name string
}

func (s DropIndex) Describe() string { return "drop index " + s.Name }

func (s DropIndex) Apply(ctx context.Context, q Querier) error {
	return execAll(ctx, q, "DROP INDEX IF EXISTS "+quoteIdent(s.Name))
}

// RetargetForeignKey moves a reference from one column to another.
//
// It runs as add, backfill, drop: To is added as a nullable column carrying Reference, Backfill
// populates it from the old relationship, To is tightened when it is declared NOT NULL, From is dropped
// with its index and foreign key, and Index is created on To. No row is ever without both references.
type RetargetForeignKey struct {
	Table     string
	From      string
	To        models.Column
	Reference models.ForeignKey
	Backfill  string
	Index     string
}

func (s RetargetForeignKey) Describe() string {
	return fmt.Sprintf("retarget %s.%s to %s.%s -> %s", s.Table, s.From, s.Table, s.To.Name, s.Reference.RefTable)
}

func (s RetargetForeignKey) steps() []Step {
	added := s.To
	added.Nullable = true

	ref := s.Reference
	ref.Column = s.To.Name

	steps := []Step{
		AddColumn{Table: s.Table, Column: added, ForeignKey: &ref},
		Exec("backfill "+s.Table+"."+s.To.Name, s.Backfill),
	}
	if !s.To.Nullable {
		steps = append(steps, AlterNullability{Table: s.Table, Column: s.To.Name})
	}
	steps = append(steps, DropColumn{Table: s.Table, Column: s.From})
	if s.Index != "" {
		steps = append(steps, CreateIndex{Table: s.Table, Index: models.Index{Name: s.Index, Columns: []string{s.To.Name}}})
	}
	return steps
}

func (s RetargetForeignKey) Apply(ctx context.Context, q Querier) error {
	if s.Backfill == "" {
		return fmt.Errorf("%w: retargeting %s.%s needs a backfill statement", ErrBackfillRequired, s.Table, s.From)
	}
	for _, step := range s.steps() {
		if err := step.Apply(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", step.Describe(), err)
		}
	}
	return nil
}

type execStep struct {
	desc string
	sql  string
	args []any
}

// Exec returns a step running a raw statement, used for data backfills and triggers.
func Exec(description, sql string, args ...any) Step {
	return execStep{desc: description, sql: sql, args: args}
}

func (s execStep) Describe() string { return s.desc }

func (s execStep) Apply(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx, s.sql, s.args...)
	return err
}
