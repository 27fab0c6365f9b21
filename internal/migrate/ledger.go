package migrate

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	ledgerTable = "schema_migrations"
	lockTable   = "schema_migrations_lock"
)

const createLedgerSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

const createLockSQL = `CREATE TABLE IF NOT EXISTS schema_migrations_lock (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	holder TEXT NOT NULL,
	acquired_at INTEGER NOT NULL
)`

// record is one row of the applied-migration ledger.
type record struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// readLedger returns the applied migrations in ascending version order.
// A store without a ledger has nothing applied.
func readLedger(ctx context.Context, q Querier) ([]record, error) {
	exists, err := tableExists(ctx, q, ledgerTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	query, args, err := sq.Select("version", "name", "applied_at").
		From(ledgerTable).
		OrderBy("version").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.Version, &r.Name, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func insertLedger(ctx context.Context, q Querier, m Migration, at time.Time) error {
	query, args, err := sq.Insert(ledgerTable).
		Columns("version", "name", "applied_at").
		Values(m.ID, m.Name, at).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger insert: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

func deleteLedger(ctx context.Context, q Querier, m Migration) error {
	query, args, err := sq.Delete(ledgerTable).Where(sq.Eq{"version": m.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger delete: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to unrecord migration: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("ledger has no row for %s", m.Key())
	}
	return nil
}
