package data

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgCodeUniqueViolation = "23505"
	pgCodeUndefinedColumn = "42703"
)

// ErrorIsNoRows validate if supplied error is because of record missing in DB.
func ErrorIsNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}

// ErrorIsDuplicateKey reports a unique constraint violation.
func ErrorIsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}

// ErrorIsUndefinedColumn reports a statement naming a column the table does not have,
// typically a translation column that was never synced.
func ErrorIsUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUndefinedColumn
}
