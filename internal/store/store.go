// Package store persists stockroom records in SQLite. Every domain function
// takes the owning user's id and only ever sees that user's rows; a row owned
// by someone else behaves exactly like a missing one.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/schoolstock/stockroom/internal/apperr"
)

// queryer is satisfied by both *sql.DB and *sql.Tx. The database runs with a
// single connection, so reads inside a transaction must go through the tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// now is the store clock, replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func notFound(what string) error {
	return apperr.New(apperr.CodeNotFound, what+" not found")
}

// noRows maps sql.ErrNoRows to a coded not-found error.
func noRows(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(what)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
