package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*PostgresDB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return newPostgresDB(mock, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func TestPostgresDB_Pool(t *testing.T) {
	db, mock := newMockDB(t)
	assert.Equal(t, mock, db.Pool(), "Pool() should return the underlying pool")
}

func TestPostgresDB_ExecuteTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bank_transactions").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE bank_transactions SET state = 'confirmed'")
			return err
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db, mock := newMockDB(t)
		boom := errors.New("invoice already matched")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackFailureKeepsCause", func(t *testing.T) {
		db, mock := newMockDB(t)
		boom := errors.New("invoice already matched")
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("conn closed"))

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "rollback failed: conn closed")
	})

	t.Run("RollbackOnPanic", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = db.ExecuteTx(ctx, func(tx pgx.Tx) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginError", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many clients"))

		called := false
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			called = true
			return nil
		})

		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.False(t, called)
	})

	t.Run("CommitError", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return nil })

		assert.ErrorContains(t, err, "failed to commit transaction")
	})
}

func TestPostgresDB_Close(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectClose()

	db.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}
