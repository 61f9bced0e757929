package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

var (
	ErrSwipeNotFound        = errors.New("swipe not found")
	ErrSwipeExists          = errors.New("swipe already exists")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchExists          = errors.New("match already exists")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrItemNotFound         = errors.New("item not found")
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
