package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/quote-revision/pkg/database"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	return newTestDBAt(t, filepath.Join(t.TempDir(), "tx.db"))
}

func newTestDBAt(t *testing.T, path string) *DB {
	t.Helper()
	raw, err := database.New(database.Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	_, err = raw.Exec("CREATE TABLE counters (name TEXT PRIMARY KEY, n INTEGER NOT NULL)")
	require.NoError(t, err)
	return NewDB(raw.DB, zap.NewNop())
}

func count(t *testing.T, db *DB) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM counters").Scan(&n))
	return n
}

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.True(t, InTransaction(txCtx))
		_, err := db.Executor(txCtx).ExecContext(txCtx, "INSERT INTO counters VALUES ('a', 1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := db.Executor(txCtx).ExecContext(txCtx, "INSERT INTO counters VALUES ('b', 1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(t, db), "rolled back")
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, txFrom(outer), txFrom(inner))
			_, err := db.Executor(inner).ExecContext(inner, "INSERT INTO counters VALUES ('c', 1)")
			if err != nil {
				return err
			}
			return errors.New("abort outer")
		})
	})
	require.Error(t, err)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	db := newTestDB(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(txCtx context.Context) error {
			_, _ = db.Executor(txCtx).ExecContext(txCtx, "INSERT INTO counters VALUES ('d', 1)")
			panic("handler bug")
		})
	})
	assert.Equal(t, 0, count(t, db))
	assert.False(t, InTransaction(context.Background()))
}

// contender opens a second pool on the same file that fails fast on a held lock
func contender(t *testing.T, path string, retries int, backoff time.Duration) *DB {
	t.Helper()
	raw, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=0&_txlock=immediate", path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return NewDB(raw, zap.NewNop(), WithBusyRetry(retries, backoff))
}

func TestWithTransaction_BusyRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")
	holder := newTestDBAt(t, path)

	held, err := holder.Begin()
	require.NoError(t, err)
	_, err = held.Exec("INSERT INTO counters VALUES ('held', 1)")
	require.NoError(t, err)

	t.Run("gives up while the lock is held", func(t *testing.T) {
		db := contender(t, path, 2, 5*time.Millisecond)
		err := db.WithTransaction(context.Background(), func(context.Context) error {
			t.Fatal("fn must not run without a transaction")
			return nil
		})
		require.Error(t, err)
		assert.True(t, IsBusy(err))
	})

	t.Run("succeeds once the lock is released", func(t *testing.T) {
		db := contender(t, path, 10, 20*time.Millisecond)
		go func() {
			time.Sleep(30 * time.Millisecond)
			_ = held.Commit()
		}()
		err := db.WithTransaction(context.Background(), func(txCtx context.Context) error {
			_, err := db.Executor(txCtx).ExecContext(txCtx, "INSERT INTO counters VALUES ('late', 1)")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count(t, holder))
	})
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: true},
		{name: "locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, want: true},
		{name: "wrapped busy", err: fmt.Errorf("begin: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), want: true},
		{name: "constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}, want: false},
		{name: "plain error", err: errors.New("busy"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusy(tt.err))
		})
	}
}
