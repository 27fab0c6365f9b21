package migrate

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/samber/lo"
)

const (
	DefaultLockTimeout      = 30 * time.Second
	DefaultLockPollInterval = 250 * time.Millisecond
	DefaultStaleLockAfter   = 10 * time.Minute
)

// Engine applies and reverts the migrations of a [Registry] against one store.
type Engine struct {
	db       *sql.DB
	registry *Registry
	logger   *log.Logger
	lock     *locker
	now      func() time.Time
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger migration events are written to.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLockTimeout bounds how long a run waits for another holder of the migration lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lock.timeout = d }
}

// WithLockPollInterval sets how often a waiting run retries the lock.
func WithLockPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.lock.poll = d }
}

// WithStaleLockAfter sets the age after which a lock is treated as abandoned. Zero never reclaims.
func WithStaleLockAfter(d time.Duration) Option {
	return func(e *Engine) { e.lock.stale = d }
}

// WithClock replaces the clock used for ledger timestamps and lock ages.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine for registry over db.
func New(db *sql.DB, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		registry: registry,
		logger:   shared.NewDiscardLogger(),
		now:      func() time.Time { return time.Now().UTC() },
		lock: &locker{
			db:      db,
			holder:  shared.GenerateID(),
			timeout: DefaultLockTimeout,
			poll:    DefaultLockPollInterval,
			stale:   DefaultStaleLockAfter,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = shared.WithLogger(e.logger, "component", "migrate")
	e.lock.logger = e.logger
	e.lock.now = e.now
	return e
}

// Registry returns the history the engine works from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Init creates the ledger and lock tables if they do not exist.
func (e *Engine) Init(ctx context.Context) error {
	if err := execAll(ctx, e.db, createLedgerSQL, createLockSQL); err != nil {
		return fmt.Errorf("failed to create migration tables: %w", err)
	}
	return nil
}

// Plan returns the pending migrations in the order they must be applied.
func (e *Engine) Plan(ctx context.Context) ([]Migration, error) {
	applied, err := readLedger(ctx, e.db)
	if err != nil {
		return nil, err
	}
	if err := e.checkPrefix(applied); err != nil {
		return nil, err
	}
	return e.registry.Migrations()[len(applied):], nil
}

// Apply runs m forward and records it in the same transaction.
//
// m must be the first pending migration; anything else fails with [ErrSequencingViolation].
func (e *Engine) Apply(ctx context.Context, m Migration) error {
	return e.locked(ctx, func() error { return e.run(ctx, m, DirectionUp) })
}

// Revert runs the inverse of m and removes it from the ledger in the same transaction.
//
// m must be the most recently applied migration; anything else fails with [ErrSequencingViolation].
func (e *Engine) Revert(ctx context.Context, m Migration) error {
	return e.locked(ctx, func() error { return e.run(ctx, m, DirectionDown) })
}

// Up applies every pending migration in order and returns those it applied.
func (e *Engine) Up(ctx context.Context) ([]Migration, error) {
	var done []Migration
	err := e.locked(ctx, func() error {
		pending, err := e.Plan(ctx)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			e.logger.Info("bringing up schema migrations", "migration_count", len(pending))
		}
		for _, m := range pending {
			if err := e.run(ctx, m, DirectionUp); err != nil {
				return err
			}
			done = append(done, m)
		}
		return nil
	})
	return done, err
}

// Down reverts the most recently applied migration. It returns nil when nothing is applied.
func (e *Engine) Down(ctx context.Context) (*Migration, error) {
	var reverted *Migration
	err := e.locked(ctx, func() error {
		applied, err := e.appliedMigrations(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			return nil
		}
		last := applied[len(applied)-1]
		if err := e.run(ctx, last, DirectionDown); err != nil {
			return err
		}
		reverted = &last
		return nil
	})
	return reverted, err
}

// To moves the store to target: pending migrations up to and including target are applied, or
// applied migrations after target are reverted newest first. A target of 0 reverts everything.
func (e *Engine) To(ctx context.Context, target int64) ([]Migration, error) {
	pos := -1
	if target != 0 {
		if pos = e.registry.Position(target); pos < 0 {
			return nil, fmt.Errorf("%w: %d", ErrUnknownMigration, target)
		}
	}

	var done []Migration
	err := e.locked(ctx, func() error {
		applied, err := e.appliedMigrations(ctx)
		if err != nil {
			return err
		}

		all := e.registry.Migrations()
		for i := len(applied); i <= pos; i++ {
			if err := e.run(ctx, all[i], DirectionUp); err != nil {
				return err
			}
			done = append(done, all[i])
		}
		for i := len(applied) - 1; i > pos; i-- {
			if err := e.run(ctx, applied[i], DirectionDown); err != nil {
				return err
			}
			done = append(done, applied[i])
		}
		return nil
	})
	return done, err
}

// Status reports the state of every registered migration.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	records, err := readLedger(ctx, e.db)
	if err != nil {
		return nil, err
	}
	if err := e.checkPrefix(records); err != nil {
		return nil, err
	}

	byVersion := lo.KeyBy(records, func(r record) int64 { return r.Version })
	status := &Status{}
	for _, m := range e.registry.Migrations() {
		entry := Entry{Migration: m, State: Pending}
		if r, ok := byVersion[m.ID]; ok {
			at := r.AppliedAt
			entry.State = Applied
			entry.AppliedAt = &at
			status.Current = m.ID
		} else {
			status.Pending++
		}
		status.Entries = append(status.Entries, entry)
	}
	return status, nil
}

// Status is a snapshot of the ledger against the registry.
type Status struct {
	Entries []Entry
	Current int64 // ID of the most recently applied migration, 0 when none
	Pending int
}

// Entry is one migration in a [Status].
type Entry struct {
	Migration Migration
	State     State
	AppliedAt *time.Time
}

func (e *Engine) appliedMigrations(ctx context.Context) ([]Migration, error) {
	records, err := readLedger(ctx, e.db)
	if err != nil {
		return nil, err
	}
	if err := e.checkPrefix(records); err != nil {
		return nil, err
	}
	return e.registry.Migrations()[:len(records)], nil
}

// checkPrefix verifies that the ledger holds exactly the first len(records) registered migrations.
func (e *Engine) checkPrefix(records []record) error {
	all := e.registry.Migrations()
	for i, r := range records {
		if e.registry.Position(r.Version) < 0 {
			return fmt.Errorf("%w: ledger records %d_%s which is not registered", ErrSequencingViolation, r.Version, r.Name)
		}
		if i >= len(all) || all[i].ID != r.Version {
			return fmt.Errorf("%w: applied set is not a prefix of the history: %s is pending before %d_%s",
				ErrSequencingViolation, all[min(i, len(all)-1)].Key(), r.Version, r.Name)
		}
	}
	return nil
}

func (e *Engine) locked(ctx context.Context, fn func() error) error {
	if err := e.Init(ctx); err != nil {
		return err
	}
	if err := e.lock.acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := e.lock.release(); err != nil {
			e.logger.Error("failed to release migration lock", "err", err)
		}
	}()
	return fn()
}

func (e *Engine) logMigrationEvent(dir Direction, m Migration, event string, kv ...any) {
	kv = append([]any{"migration", m.Key(), "direction", dir.String()}, kv...)
	e.logger.Info("migration "+event, kv...)
}

// run executes one migration in a single transaction on a dedicated connection.
func (e *Engine) run(ctx context.Context, m Migration, dir Direction) (err error) {
	pos := e.registry.Position(m.ID)
	if pos < 0 {
		return newError(m, dir, ErrSequencingViolation, fmt.Errorf("%w: %s", ErrUnknownMigration, m.Key()))
	}
	m = e.registry.migrations[pos]

	steps := m.Steps(dir)
	if dir == DirectionDown && len(steps) == 0 {
		return newError(m, dir, ErrTransformFailure, ErrIrreversible)
	}

	e.logMigrationEvent(dir, m, "started")
	started := e.now()
	defer func() {
		if err != nil {
			e.logger.Error("migration failed", "migration", m.Key(), "direction", dir.String(), "err", err)
		}
	}()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return newError(m, dir, ErrTransformFailure, fmt.Errorf("failed to get connection: %w", err))
	}
	defer e.releaseConn(conn)

	// Foreign keys cannot be toggled inside a transaction.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return newError(m, dir, ErrTransformFailure, fmt.Errorf("failed to disable foreign keys: %w", err))
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return newError(m, dir, ErrTransformFailure, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	records, err := readLedger(ctx, tx)
	if err != nil {
		return newError(m, dir, ErrTransformFailure, err)
	}
	if err := e.checkSequence(records, pos, dir); err != nil {
		return newError(m, dir, ErrSequencingViolation, err)
	}

	for i, s := range steps {
		e.logger.Debug("running step", "migration", m.Key(), "step", i+1, "desc", s.Describe())
		if err := s.Apply(ctx, tx); err != nil {
			return stepError(m, dir, i, s, err)
		}
	}

	violations, err := foreignKeyViolations(ctx, tx)
	if err != nil {
		return newError(m, dir, ErrTransformFailure, err)
	}
	if len(violations) > 0 {
		v := violations[0]
		return newError(m, dir, ErrTransformFailure, fmt.Errorf(
			"%d foreign key violations, first in %s row %d referencing %s",
			len(violations), v.table, v.rowid.Int64, v.parent))
	}

	if dir == DirectionUp {
		err = insertLedger(ctx, tx, m, e.now())
	} else {
		err = deleteLedger(ctx, tx, m)
	}
	if err != nil {
		return newError(m, dir, ErrTransformFailure, err)
	}

	if err := ctx.Err(); err != nil {
		return newError(m, dir, ErrTransformFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return newError(m, dir, ErrTransformFailure, fmt.Errorf("failed to commit: %w", err))
	}

	e.logMigrationEvent(dir, m, "completed", "took", e.now().Sub(started))
	return nil
}

// checkSequence enforces that Up targets the first pending migration and Down the last applied one.
func (e *Engine) checkSequence(records []record, pos int, dir Direction) error {
	if err := e.checkPrefix(records); err != nil {
		return err
	}
	all := e.registry.migrations
	applied := len(records)

	switch dir {
	case DirectionUp:
		if pos < applied {
			return fmt.Errorf("%w: %s is already applied", ErrSequencingViolation, all[pos].Key())
		}
		if pos > applied {
			return fmt.Errorf("%w: %s is still pending", ErrSequencingViolation, all[applied].Key())
		}
	case DirectionDown:
		if pos >= applied {
			return fmt.Errorf("%w: %s is not applied", ErrSequencingViolation, all[pos].Key())
		}
		if pos < applied-1 {
			return fmt.Errorf("%w: %s was applied after it", ErrSequencingViolation, all[applied-1].Key())
		}
	}
	return nil
}

// releaseConn re-enables foreign keys before the connection returns to the pool. A connection
// that cannot be restored is discarded.
func (e *Engine) releaseConn(conn *sql.Conn) {
	if _, err := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
		e.logger.Warn("discarding connection after failed foreign key reset", "err", err)
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		e.logger.Warn("failed to close connection", "err", err)
	}
}
