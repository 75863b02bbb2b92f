// slug.go derives URL-safe slugs from display names. Slugs are deterministic
// outputs of the name: they are recomputed whenever the name changes and are
// never accepted from callers directly.
package orgs

import "github.com/gosimple/slug"

// Slugify derives the URL-safe slug for a name. Uniqueness is not handled
// here; the stores check the slug against its uniqueness scope (global for
// organizations, per-organization for teams) and fail with ErrConflict.
func Slugify(name string) string {
	return slug.Make(name)
}
