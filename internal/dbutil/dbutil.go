// Package dbutil maps driver and ORM errors onto the apperr taxonomy.
package dbutil

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"attendance/internal/apperr"
)

const uniqueViolation = "23505"

// IsUniqueViolation reports a unique index violation, whether GORM
// translated it or the raw pgx error came through.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// NotFound maps gorm.ErrRecordNotFound onto apperr.NotFound(entity) and
// passes other errors through.
func NotFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}

// Conflict maps a unique violation onto a Conflict carrying msg and passes
// other errors through.
func Conflict(err error, msg string) error {
	if IsUniqueViolation(err) {
		return apperr.New(apperr.ErrConflict, msg)
	}
	return err
}
