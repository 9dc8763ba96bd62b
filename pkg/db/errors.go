package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or SQLite. When constraint is provided the violation must name it
// (Postgres constraint name, or the "table.column" pair SQLite reports).
// Wrapped errors are unwrapped until a driver message is found.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraint == "" || pgErr.ConstraintName == constraint || strings.Contains(pgErr.Message, constraint)
	}

	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		msg := cur.Error()
		if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
			continue
		}
		if constraint == "" || strings.Contains(msg, constraint) {
			return true
		}
	}
	return false
}
