package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	defaultBusyRetries = 3
	defaultBusyBackoff = 50 * time.Millisecond
)

type txKey struct{}

// DB is the SQLite handle behind the quote repositories. The open transaction
// travels in the context, so a version commit and its item swap share one tx
// even when they go through different repository methods.
type DB struct {
	*sql.DB
	logger      *zap.Logger
	busyRetries int
	busyBackoff time.Duration
}

// Option configures a DB
type Option func(*DB)

// WithBusyRetry sets how often a transaction start is retried while another
// writer holds the database lock, and the linear backoff step between tries.
func WithBusyRetry(retries int, backoff time.Duration) Option {
	return func(db *DB) {
		db.busyRetries = retries
		db.busyBackoff = backoff
	}
}

// NewDB wraps an open SQLite connection pool
func NewDB(sqlDB *sql.DB, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		DB:          sqlDB,
		logger:      logger,
		busyRetries: defaultBusyRetries,
		busyBackoff: defaultBusyBackoff,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// WithTransaction runs fn in a transaction carried by the context it receives.
// Inside an existing transaction fn joins it. The transaction is rolled back
// when fn returns an error or panics.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.begin(ctx)
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		if p := recover(); p != nil {
			db.logger.Error("Transaction aborted by panic", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	finished = true
	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// begin starts a write transaction, backing off while the database is busy
func (db *DB) begin(ctx context.Context) (*sql.Tx, error) {
	for attempt := 1; ; attempt++ {
		tx, err := db.BeginTx(ctx, nil)
		if err == nil {
			return tx, nil
		}
		if !IsBusy(err) || attempt > db.busyRetries {
			db.logger.Error("Failed to begin transaction", zap.Error(err), zap.Int("attempts", attempt))
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		db.logger.Info("Database busy, retrying transaction", zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to begin transaction: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * db.busyBackoff):
		}
	}
}

// IsBusy reports whether err is SQLite lock contention
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// InTransaction reports whether ctx carries an open transaction
func InTransaction(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// Executor returns the context's transaction, or the pool outside one
func (db *DB) Executor(ctx context.Context) Executor {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// Executor is satisfied by both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ port.TransactionManager = (*DB)(nil)
