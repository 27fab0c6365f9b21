package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
)

// Querier is satisfied by [*sql.DB], [*sql.Conn] and [*sql.Tx].
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const rebuildPrefix = "__rebuild_"

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func columnSQL(c models.Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		return b.String()
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

func referenceSQL(fk models.ForeignKey) string {
	s := fmt.Sprintf("REFERENCES %s (%s)", quoteIdent(fk.RefTable), quoteIdent(fk.RefColumn))
	if fk.OnDelete != "" && !strings.EqualFold(fk.OnDelete, models.NoAction) {
		s += " ON DELETE " + fk.OnDelete
	}
	return s
}

func createTableSQL(t models.Table) string {
	lines := make([]string, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, c := range t.Columns {
		lines = append(lines, "\t"+columnSQL(c))
	}
	for _, fk := range t.ForeignKeys {
		name := fmt.Sprintf("FK_%s_%s_%s", strings.TrimPrefix(t.Name, rebuildPrefix), fk.RefTable, fk.Column)
		lines = append(lines, fmt.Sprintf("\tCONSTRAINT %s FOREIGN KEY (%s) %s", quoteIdent(name), quoteIdent(fk.Column), referenceSQL(fk)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", quoteIdent(t.Name), strings.Join(lines, ",\n"))
}

func createIndexSQL(table string, idx models.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, quoteIdent(idx.Name), quoteIdent(table), quoteIdents(idx.Columns))
}

func execAll(ctx context.Context, q Querier, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func tableExists(ctx context.Context, q Querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", name, err)
	}
	return n > 0, nil
}

// Inspect reads the live schema of every user table, excluding SQLite internals and the
// engine's bookkeeping tables.
func Inspect(ctx context.Context, q Querier) (models.Schema, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return models.Schema{}, fmt.Errorf("failed to list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return models.Schema{}, fmt.Errorf("failed to scan table name: %w", err)
		}
		if name == ledgerTable || name == lockTable {
			continue
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.Schema{}, fmt.Errorf("failed to list tables: %w", err)
	}

	var schema models.Schema
	for _, name := range names {
		t, err := inspectTable(ctx, q, name)
		if err != nil {
			return models.Schema{}, err
		}
		schema.Tables = append(schema.Tables, t)
	}
	return schema, nil
}

func inspectTable(ctx context.Context, q Querier, name string) (models.Table, error) {
	t := models.Table{Name: name}

	rows, err := q.QueryContext(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return t, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	for rows.Next() {
		var (
			c       models.Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return t, fmt.Errorf("failed to scan column of %s: %w", name, err)
		}
		c.PrimaryKey = pk > 0
		c.Nullable = notNull == 0 && !c.PrimaryKey
		if dflt.Valid && !strings.EqualFold(dflt.String, "NULL") {
			c.Default = models.Literal(dflt.String)
		}
		t.Columns = append(t.Columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	if len(t.Columns) == 0 {
		return t, fmt.Errorf("table %s does not exist", name)
	}

	rows, err = q.QueryContext(ctx, `SELECT "from", "table", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`, name)
	if err != nil {
		return t, fmt.Errorf("failed to read foreign keys of %s: %w", name, err)
	}
	for rows.Next() {
		var (
			fk models.ForeignKey
			to sql.NullString
		)
		if err := rows.Scan(&fk.Column, &fk.RefTable, &to, &fk.OnDelete); err != nil {
			rows.Close()
			return t, fmt.Errorf("failed to scan foreign key of %s: %w", name, err)
		}
		fk.RefColumn = to.String
		if fk.RefColumn == "" {
			fk.RefColumn = "Id"
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("failed to read foreign keys of %s: %w", name, err)
	}

	rows, err = q.QueryContext(ctx, `SELECT name, "unique" FROM pragma_index_list(?) WHERE origin = 'c' ORDER BY name`, name)
	if err != nil {
		return t, fmt.Errorf("failed to read indexes of %s: %w", name, err)
	}
	for rows.Next() {
		var (
			idx    models.Index
			unique int
		)
		if err := rows.Scan(&idx.Name, &unique); err != nil {
			rows.Close()
			return t, fmt.Errorf("failed to scan index of %s: %w", name, err)
		}
		idx.Unique = unique == 1
		t.Indexes = append(t.Indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("failed to read indexes of %s: %w", name, err)
	}

	for i := range t.Indexes {
		cols, err := indexColumns(ctx, q, t.Indexes[i].Name)
		if err != nil {
			return t, err
		}
		t.Indexes[i].Columns = cols
	}

	triggers, err := tableTriggers(ctx, q, name)
	if err != nil {
		return t, err
	}
	for _, tr := range triggers {
		t.Triggers = append(t.Triggers, tr.name)
	}

	return t, nil
}

func indexColumns(ctx context.Context, q Querier, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan index %s: %w", index, err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

type trigger struct {
	name string
	sql  string
}

func tableTriggers(ctx context.Context, q Querier, table string) ([]trigger, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'trigger' AND tbl_name = ? ORDER BY name`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read triggers of %s: %w", table, err)
	}
	defer rows.Close()

	var triggers []trigger
	for rows.Next() {
		var tr trigger
		if err := rows.Scan(&tr.name, &tr.sql); err != nil {
			return nil, fmt.Errorf("failed to scan trigger of %s: %w", table, err)
		}
		triggers = append(triggers, tr)
	}
	return triggers, rows.Err()
}

// rebuildTable replaces table with the definition produced by edit.
//
// Columns present before and after the edit are copied; rows keep their primary keys. Indexes left
// in the edited definition and every trigger on the table are recreated. Foreign key enforcement
// must be off on the connection.
func rebuildTable(ctx context.Context, q Querier, table string, edit func(*models.Table) error) error {
	def, err := inspectTable(ctx, q, table)
	if err != nil {
		return err
	}
	triggers, err := tableTriggers(ctx, q, table)
	if err != nil {
		return err
	}

	before := def.ColumnNames()
	if err := edit(&def); err != nil {
		return err
	}

	common := slices.DeleteFunc(def.ColumnNames(), func(c string) bool { return !slices.Contains(before, c) })

	tmp := def
	tmp.Name = rebuildPrefix + table

	stmts := []string{
		createTableSQL(tmp),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteIdent(tmp.Name), quoteIdents(common), quoteIdents(common), quoteIdent(table)),
		"DROP TABLE " + quoteIdent(table),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tmp.Name), quoteIdent(table)),
	}
	for _, idx := range def.Indexes {
		stmts = append(stmts, createIndexSQL(table, idx))
	}
	for _, tr := range triggers {
		stmts = append(stmts, tr.sql)
	}
	return execAll(ctx, q, stmts...)
}

func countRows(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type fkViolation struct {
	table  string
	rowid  sql.NullInt64
	parent string
}

func foreignKeyViolations(ctx context.Context, q Querier) ([]fkViolation, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("failed to check foreign keys: %w", err)
	}
	defer rows.Close()

	var violations []fkViolation
	for rows.Next() {
		var (
			v    fkViolation
			fkid int
		)
		if err := rows.Scan(&v.table, &v.rowid, &v.parent, &fkid); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key violation: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
