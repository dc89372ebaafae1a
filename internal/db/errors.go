package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict reports a concurrent modification the caller may retry.
var ErrConflict = errors.New("concurrent modification, please retry")

// IsConflict reports whether err is a PostgreSQL error caused by concurrent
// writers: serialization failures, deadlocks and unique violations.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.UniqueViolation:
		return true
	default:
		return false
	}
}

func translate(err error) error {
	if err == nil || errors.Is(err, ErrConflict) || !IsConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConflict, err)
}
