package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sage/internal/core/apperror"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeDuplicateTable      = "42P07"
	codeDuplicateColumn     = "42701"
	codeDuplicateObject     = "42710"
)

var errNoRows = pgx.ErrNoRows

// MapError turns a pgx error into an AppError. The storage message is kept
// verbatim so callers can act on it. entity and key feed NotFound.
func MapError(op, entity string, key any, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperror.NewStorage(op, err)
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return apperror.NewStorage(op, err).
			WithDetail("constraint", pgErr.ConstraintName).
			WithDetail("kind", "unique")
	case codeForeignKeyViolation:
		return apperror.NewConflict(fmt.Sprintf("%s references a missing or in-use record", entity)).
			WithDetail("constraint", pgErr.ConstraintName).
			WithDetail("reason", pgErr.Message)
	case codeCheckViolation, codeNotNullViolation:
		return apperror.NewStorage(op, err).
			WithDetail("constraint", pgErr.ConstraintName).
			WithDetail("column", pgErr.ColumnName)
	case codeDuplicateTable, codeDuplicateColumn, codeDuplicateObject:
		return apperror.NewStorage(op, err).WithDetail("kind", "duplicate_object")
	}
	return apperror.NewStorage(op, err)
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
