// Package repositories implements the SQL access layer for the five membership
// relations. Repositories contain no policy: visibility, authorization, and
// ownership invariants live in internal/orgs. Mutating methods that participate
// in a guard-and-mutate sequence have explicit ...Tx variants so the stores can
// scope them to a single transaction.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. Stores pre-check duplicates, but two concurrent inserts can both
// pass the pre-check; the constraint is the backstop and this lets callers
// translate it into a conflict instead of a server error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
