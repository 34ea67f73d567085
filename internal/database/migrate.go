// Package database owns the goose-driven schema migrations for the
// coordination substrate's PostgreSQL datastore. Every table the rest of
// the codebase reads and writes through pkg/store is created here; no
// package outside this one issues a CREATE TABLE.
package database

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	"github.com/sentinelops/sentinel/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending migration in migrations/ to db, in
// filename order. It is idempotent: goose tracks applied versions in its
// own bookkeeping table and is a no-op once the schema is current.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.ConfigurationError("goose dialect", err.Error())
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.DatabaseError("apply migrations", err)
	}
	return nil
}

// Status reports the current applied migration version, for a startup
// health check or an operator CLI.
func Status(db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return 0, errors.ConfigurationError("goose dialect", err.Error())
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, errors.DatabaseError("read migration version", err)
	}
	return version, nil
}
