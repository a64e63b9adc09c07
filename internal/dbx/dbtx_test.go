package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE pairs (id INTEGER PRIMARY KEY CHECK (id = 1), token TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM pairs`).Scan(&n))
	return n
}

func TestWithTx(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(ctx context.Context, tx DBTX) error
		wantErr  bool
		wantRows int
	}{
		{
			name: "commits on success",
			fn: func(ctx context.Context, tx DBTX) error {
				_, err := tx.ExecContext(ctx, `INSERT INTO pairs(id, token) VALUES (1, 'a')`)
				return err
			},
			wantRows: 1,
		},
		{
			name: "rolls back on error",
			fn: func(ctx context.Context, tx DBTX) error {
				if _, err := tx.ExecContext(ctx, `INSERT INTO pairs(id, token) VALUES (1, 'a')`); err != nil {
					return err
				}
				return errors.New("boom")
			},
			wantErr: true,
		},
		{
			name: "statement error keeps earlier writes out",
			fn: func(ctx context.Context, tx DBTX) error {
				if _, err := tx.ExecContext(ctx, `INSERT INTO pairs(id, token) VALUES (1, 'a')`); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `INSERT INTO pairs(id, token) VALUES (2, 'b')`)
				return err
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := setupDB(t)
			err := WithTx(context.Background(), db, nil, tc.fn)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.wantRows, countRows(t, db))
		})
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		require.Equal(t, 0, countRows(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO pairs(id, token) VALUES (1, 'a')`)
		require.NoError(t, err)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestWithTx_CommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	commitErr := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM pairs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(commitErr)

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM pairs")
		return err
	})
	require.ErrorIs(t, err, commitErr)
	require.NoError(t, mock.ExpectationsWereMet())
}
