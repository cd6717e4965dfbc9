package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConcurrencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"lock wait", &mysql.MySQLError{Number: 1205}, false},
		{"duplicate", &mysql.MySQLError{Number: 1062}, true},
		{"wrapped deadlock", fmt.Errorf("commit: %w", &mysql.MySQLError{Number: 1213}), true},
		{"syntax", &mysql.MySQLError{Number: 1064}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConcurrencyConflict(tt.err))
		})
	}
	assert.True(t, IsDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsLockWaitTimeout(fmt.Errorf("update: %w", &mysql.MySQLError{Number: 1205})))
	assert.False(t, IsLockWaitTimeout(&mysql.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicate(&mysql.MySQLError{Number: 1213}))
}

func TestInSerializableTx_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = InSerializableTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE seats SET is_available = 0")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInSerializableTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sentinel := errors.New("validation failed")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = InSerializableTx(context.Background(), db, func(*sql.Tx) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}
