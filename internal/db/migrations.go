package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrations are goose SQL files applied in version order. The SQL is kept
// portable between sqlite and postgres. Append new files; never edit applied ones.
//
//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the schema up to date. It is idempotent.
func Migrate(ctx context.Context, db *DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	provider, err := goose.NewProvider(db.dialect.goose(), db.sql, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("running migration %d: %w", r.Source.Version, r.Error)
		}
	}
	return nil
}
