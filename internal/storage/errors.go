package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("storage: record not found")
	ErrConflict        = errors.New("storage: record already exists")
	ErrInUse           = errors.New("storage: record is referenced by other rows")
	ErrUnknownCurrency = errors.New("storage: rate references unknown currency")
	ErrLockNotHeld     = errors.New("storage: advisory lock was not held")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
