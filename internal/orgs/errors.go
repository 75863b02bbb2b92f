// Package orgs implements the membership core: organization and team stores
// enforcing ownership invariants, and the visibility/authorization resolver.
//
// errors.go defines the four failure kinds every operation in the package can
// return. They are sentinel errors so callers branch with errors.Is; operations
// wrap them with %w to add context without losing the kind. All failures are
// terminal: nothing in this package retries, and a failure inside a transaction
// aborts the whole transaction.
package orgs

import "errors"

var (
	// ErrNotFound indicates the entity is absent, or present but not visible
	// or resolvable to the acting user.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate name or slug, or a user who is
	// already a member at the relevant level.
	ErrConflict = errors.New("conflict")

	// ErrPreconditionFailed indicates the operation would violate an
	// invariant: removing or demoting the sole remaining owner, or adding a
	// team member who is not an organization member.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrPermissionDenied indicates the acting user lacks the role or
	// elevated capability the mutation requires.
	ErrPermissionDenied = errors.New("permission denied")
)
