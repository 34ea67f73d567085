// Package store wraps a SQL datastore connection with the row-lock helper
// the coordination substrate needs for pessimistic concurrency control
// (incident dedup, pattern-learning updates).
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/internal/errors"
)

// Session wraps a pooled *sqlx.DB (backed by pgx's stdlib driver) and
// provides transaction and row-lock helpers shared across the
// coordination substrate.
type Session struct {
	DB     *sqlx.DB
	Logger *zap.Logger
}

// Open connects to a PostgreSQL datastore via pgx's database/sql driver.
func Open(dsn string, logger *zap.Logger) (*Session, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, errors.DatabaseError("connect", err)
	}
	return &Session{DB: db, Logger: logger}, nil
}

// NewFromDB wraps an already-open *sql.DB, e.g. a go-sqlmock mock
// connection in tests.
func NewFromDB(db *sql.DB, logger *zap.Logger) *Session {
	return &Session{DB: sqlx.NewDb(db, "pgx"), Logger: logger}
}

// Close releases the underlying connection pool.
func (s *Session) Close() error {
	return s.DB.Close()
}

// Tx runs fn inside a transaction, committing on success and rolling back
// on any error or panic.
func (s *Session) Tx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("begin tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

// RowLockQuery renders a `SELECT ... FOR UPDATE` clause by appending
// FOR UPDATE to the caller's base query; it does not check whether the base
// query already carries a locking clause.
func RowLockQuery(base string) string {
	return fmt.Sprintf("%s FOR UPDATE", base)
}
