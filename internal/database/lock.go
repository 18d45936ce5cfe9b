package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// RestoreFunc undoes a session setting made inside a transaction.
type RestoreFunc func(context.Context) error

func noRestore(context.Context) error { return nil }

// ForUpdate adds an exclusive row lock to q. SQLite has no row locks; its writer lock
// already serializes transactions, so the clause is omitted there.
func ForUpdate(db bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.SQLite {
		return q
	}
	return q.For("UPDATE")
}

// SetLockTimeout bounds how long the current transaction waits for row locks.
//
// Postgres scopes the setting to the transaction. MySQL only has a session variable, so
// the previous value is read first and the returned RestoreFunc writes it back; call it
// before the transaction ends so the pooled connection does not keep the admission
// timeout. On other dialects both are no-ops.
func SetLockTimeout(ctx context.Context, tx bun.Tx, timeout time.Duration) (RestoreFunc, error) {
	if timeout <= 0 {
		return noRestore, nil
	}

	switch tx.Dialect().Name() {
	case dialect.PG:
		_, err := tx.ExecContext(ctx, pgLockTimeout(timeout))
		return noRestore, err
	case dialect.MySQL:
		var previous int64
		if err := tx.QueryRowContext(ctx, "SELECT @@SESSION.innodb_lock_wait_timeout").Scan(&previous); err != nil {
			return noRestore, fmt.Errorf("read lock wait timeout: %w", err)
		}
		if _, err := tx.ExecContext(ctx, mysqlLockWait(mysqlSeconds(timeout))); err != nil {
			return noRestore, err
		}
		return func(ctx context.Context) error {
			_, err := tx.ExecContext(context.WithoutCancel(ctx), mysqlLockWait(previous))
			return err
		}, nil
	default:
		return noRestore, nil
	}
}

func pgLockTimeout(timeout time.Duration) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
}

// mysqlSeconds rounds down to whole seconds, the variable's unit, with a floor of 1.
func mysqlSeconds(timeout time.Duration) int64 {
	return max(int64(timeout/time.Second), 1)
}

func mysqlLockWait(seconds int64) string {
	return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)
}
