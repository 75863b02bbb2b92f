// actor.go defines the acting identity every operation is evaluated against.
package orgs

import (
	"context"

	"github.com/djstein/orgs/internal/db/models"
)

// Actor is the identity on whose behalf an operation runs. The zero value is
// the anonymous actor. Elevated actors (superusers) satisfy every role check.
type Actor struct {
	UserID   string
	Username string
	Elevated bool
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{}
}

// Authenticated reports whether the actor carries a resolved user identity.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// IdentityDirectory resolves usernames to stable user identities. The
// membership core consumes it; it never implements authentication itself.
// A nil result with a nil error means the username is unknown.
type IdentityDirectory interface {
	LookupUser(ctx context.Context, username string) (*models.User, error)
}
