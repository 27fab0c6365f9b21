package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/time/rate"
)

// locker serializes migration runs across processes sharing a store through a single-row table.
type locker struct {
	db      *sql.DB
	holder  string
	timeout time.Duration
	poll    time.Duration
	stale   time.Duration
	now     func() time.Time
	logger  *log.Logger
}

// acquire blocks until the lock is held, the timeout elapses ([ErrLockTimeout]) or ctx ends.
func (l *locker) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(l.poll), 1)
	for attempt := 1; ; attempt++ {
		ok, err := l.tryAcquire(waitCtx)
		if err != nil && waitCtx.Err() == nil {
			return err
		}
		if ok {
			l.logger.Debug("acquired migration lock", "holder", l.holder, "attempts", attempt)
			return nil
		}

		l.logger.Debug("migration lock is held, waiting", "attempt", attempt)
		if err := limiter.Wait(waitCtx); err != nil {
			// Wait fails early when the next token lands past the deadline.
			<-waitCtx.Done()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", ErrLockTimeout, l.timeout)
		}
	}
}

func (l *locker) tryAcquire(ctx context.Context) (bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to begin lock transaction: %w", err)
	}
	defer tx.Rollback()

	now := l.now()
	if l.stale > 0 {
		query, args, err := sq.Delete(lockTable).
			Where(sq.Lt{"acquired_at": now.Add(-l.stale).UnixMilli()}).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("failed to build stale lock delete: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return false, fmt.Errorf("failed to clear stale lock: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			l.logger.Warn("reclaimed stale migration lock", "stale_after", l.stale)
		}
	}

	query, args, err := sq.Insert(lockTable).
		Options("OR IGNORE").
		Columns("id", "holder", "acquired_at").
		Values(1, l.holder, now.UnixMilli()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build lock insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isBusy(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock insert result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit lock: %w", err)
	}
	return n == 1, nil
}

// release drops the lock if this holder still owns it. It runs even when the caller's context ended.
func (l *locker) release() error {
	query, args, err := sq.Delete(lockTable).
		Where(sq.Eq{"id": 1, "holder": l.holder}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lock release: %w", err)
	}
	if _, err := l.db.ExecContext(context.Background(), query, args...); err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	l.logger.Debug("released migration lock", "holder", l.holder)
	return nil
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
