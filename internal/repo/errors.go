package repo

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup (including owner-filtered lookups)
// matches no row. Callers must not distinguish "missing" from "not yours".
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint (email, isbn) is violated.
var ErrDuplicate = errors.New("duplicate record")

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
