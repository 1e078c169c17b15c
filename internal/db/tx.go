package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/zaupnik/internal/model"
)

// Querier is the subset of database/sql used by the store. Both *DB and *Tx
// satisfy it, so store functions run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Dialect() Dialect
}

// Tx is a transaction that rebinds queries for its dialect.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (tx *Tx) Dialect() Dialect {
	return tx.dialect
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.tx.ExecContext(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.tx.QueryContext(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.tx.QueryRowContext(ctx, tx.dialect.Rebind(query), args...)
}

// WithTx begins a transaction, runs fn with it, and commits on success or
// rolls back on error or panic. Panics are rethrown. Lock contention reported
// by the driver is returned as model.ErrStorageConflict.
//
// Typical use:
//
//	err := database.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
//	    return store.ConsumeToken(ctx, tx, token, userID, now)
//	})
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	sqlTx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("beginning transaction: %w", err))
	}
	tx := &Tx{tx: sqlTx, dialect: db.dialect}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			err = classify(err)
			return
		}
		if cerr := sqlTx.Commit(); cerr != nil {
			err = classify(fmt.Errorf("committing transaction: %w", cerr))
		}
	}()

	return fn(ctx, tx)
}

// classify tags driver-level contention as a storage conflict so callers can
// retry the whole logical operation.
func classify(err error) error {
	if err == nil || errors.Is(err, model.ErrStorageConflict) {
		return err
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %w", model.ErrStorageConflict, err)
	}
	return err
}

// IsConflict reports whether err is a lock or serialization failure that a
// retry of the same transaction may resolve.
func IsConflict(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		// serialization_failure, deadlock_detected
		return pe.Code == "40001" || pe.Code == "40P01"
	}
	return false
}
