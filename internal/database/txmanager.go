// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// txKey is a context key type for storing database transactions.
type txKey struct{}

// txState is the transaction carried in a context together with the callbacks
// that must run once it commits.
type txState struct {
	tx          *sql.Tx
	afterCommit []func(ctx context.Context)
}

// Querier represents a database query executor (either *sql.DB or *sql.Tx).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager manages database transactions.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxOption configures a TxManager.
type TxOption func(*sqlTxManager)

// WithLockTimeout bounds how long a statement inside the transaction waits for a row lock.
// The driver selects the dialect ("postgres" or "mysql"); zero disables the setting.
// MySQL has no transaction-scoped lock timeout, so for it the bound comes from
// Config.LockTimeout on the connection and this option changes nothing.
func WithLockTimeout(driver string, timeout time.Duration) TxOption {
	return func(m *sqlTxManager) {
		m.driver = driver
		m.lockTimeout = timeout
	}
}

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db          *sql.DB
	driver      string
	lockTimeout time.Duration
}

// NewTxManager creates a new TxManager for the given database.
func NewTxManager(db *sql.DB, opts ...TxOption) TxManager {
	m := &sqlTxManager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTx executes the function within a database transaction.
//
// If ctx already carries a transaction the function joins it and the outer call
// owns commit and rollback. Callbacks registered with AfterCommit run in order after
// a successful commit, with a context that no longer carries the transaction; they
// are discarded when the function fails or the commit does.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return ClassifyError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := m.applyLockTimeout(ctx, tx); err != nil {
		_ = tx.Rollback()
		return ClassifyError(fmt.Errorf("failed to set lock timeout: %w", err))
	}

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, state)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return ClassifyError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range state.afterCommit {
		hook(hookCtx)
	}

	return nil
}

// applyLockTimeout scopes the lock wait timeout to the current transaction.
func (m *sqlTxManager) applyLockTimeout(ctx context.Context, tx *sql.Tx) error {
	if m.lockTimeout <= 0 {
		return nil
	}

	switch m.driver {
	case "postgres":
		_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds()))
		return err
	default:
		// A session-level SET would outlive the transaction on the pooled
		// connection; MySQL gets the timeout from the DSN instead.
		return nil
	}
}

// GetTx retrieves a transaction from context, or returns the DB connection.
func GetTx(ctx context.Context, db *sql.DB) Querier {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db
}

// InTx reports whether ctx carries an active transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// AfterCommit registers fn to run after the transaction in ctx commits.
// It returns false, without registering anything, when ctx carries no transaction.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) bool {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return false
	}
	state.afterCommit = append(state.afterCommit, fn)
	return true
}
