// Package migrations embeds the meta_cache schema for each supported database
// and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Supported dialects. Each has its own directory of migrations.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Up applies all pending migrations for the dialect
func Up(db *sql.DB, dialect string) error {
	dir, gooseDialect, err := resolve(dialect)
	if err != nil {
		return err
	}

	goose.SetBaseFS(files)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration for the dialect
func Down(db *sql.DB, dialect string) error {
	dir, gooseDialect, err := resolve(dialect)
	if err != nil {
		return err
	}

	goose.SetBaseFS(files)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Down(db, dir); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Version returns the current schema version for the dialect
func Version(db *sql.DB, dialect string) (int64, error) {
	_, gooseDialect, err := resolve(dialect)
	if err != nil {
		return 0, err
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}

func resolve(dialect string) (dir, gooseDialect string, err error) {
	switch dialect {
	case DialectPostgres:
		return "postgres", "postgres", nil
	case DialectSQLite:
		return "sqlite", "sqlite3", nil
	default:
		return "", "", fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}
