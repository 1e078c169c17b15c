package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// DB is a connection pool that rebinds queries for its dialect.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Open opens a database connection for the given driver and configures it.
// For sqlite, dsn is a file path or ":memory:"; for postgres it is a pgx DSN.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func openSQLite(path string) (*DB, error) {
	memory := path == ":memory:"

	pragmas := sqlitePragmas
	if !memory {
		pragmas = append([]string{"journal_mode(WAL)"}, pragmas...)
	}

	var q []string
	for _, p := range pragmas {
		q = append(q, "_pragma="+p)
	}
	// Writers take the database lock at BEGIN, so read-validate-write
	// transactions serialize instead of failing on lock upgrade.
	q = append(q, "_txlock=immediate")

	dsn := "file:" + path + "?" + strings.Join(q, "&")
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each :memory: connection is its own database.
	if memory {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &DB{sql: sqlDB, dialect: SQLite}, nil
}

func openPostgres(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &DB{sql: sqlDB, dialect: Postgres}, nil
}

// Wrap adapts an existing pool. Used by tests that bring their own driver.
func Wrap(sqlDB *sql.DB, d Dialect) *DB {
	return &DB{sql: sqlDB, dialect: d}
}

// SQL returns the underlying pool.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Dialect returns the SQL dialect of the pool.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.sql.ExecContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.sql.QueryContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, db.dialect.Rebind(query), args...)
}
