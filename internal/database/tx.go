package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that signal a lost race rather than a fault.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

// Beginner is satisfied by *sql.DB.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InSerializableTx runs fn inside a SERIALIZABLE transaction.  The
// transaction is committed when fn returns nil and rolled back otherwise;
// fn's error is returned unchanged so callers can match sentinels.
func InSerializableTx(ctx context.Context, db Beginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// IsConcurrencyConflict reports whether err means another transaction won
// a race on the same rows: a deadlock or a unique key violation.
func IsConcurrencyConflict(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case erDupEntry, erLockDeadlock:
		return true
	}
	return false
}

// IsLockWaitTimeout reports whether err is InnoDB giving up on a row lock.
// The rows were busy, not changed, so the caller may simply try again.
func IsLockWaitTimeout(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erLockWaitTimeout
}

// IsDuplicate reports whether err is a unique key violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupEntry
}
