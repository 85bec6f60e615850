package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func pgErrorCode(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	return pgErr.Code, pgErr.ConstraintName, true
}

func isUniqueViolation(err error) bool {
	code, _, ok := pgErrorCode(err)
	return ok && code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	code, _, ok := pgErrorCode(err)
	return ok && code == pgForeignKeyViolation
}

func isCheckViolation(err error) bool {
	code, _, ok := pgErrorCode(err)
	return ok && code == pgCheckViolation
}

func violatedConstraint(err error) string {
	_, constraint, _ := pgErrorCode(err)
	return constraint
}
