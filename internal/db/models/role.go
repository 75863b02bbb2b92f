// Package models - role.go defines the closed role vocabularies for organization
// and team membership. Organization role and team role are independent axes: a
// team OWNER may be a plain MEMBER of the surrounding organization.
package models

import "fmt"

// Role is a member's role within an organization.
type Role string

// TeamRole is a team member's role within a team.
type TeamRole string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"

	TeamRoleOwner  TeamRole = "OWNER"
	TeamRoleMember TeamRole = "MEMBER"
)

// Valid reports whether r is one of the two recognised organization roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember
}

// Valid reports whether r is one of the two recognised team roles.
func (r TeamRole) Valid() bool {
	return r == TeamRoleOwner || r == TeamRoleMember
}

// ParseRole converts an external string into a Role, rejecting anything
// outside the closed {OWNER, MEMBER} set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q (must be OWNER or MEMBER)", s)
	}
	return r, nil
}

// ParseTeamRole converts an external string into a TeamRole, rejecting anything
// outside the closed {OWNER, MEMBER} set.
func ParseTeamRole(s string) (TeamRole, error) {
	r := TeamRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid team role %q (must be OWNER or MEMBER)", s)
	}
	return r, nil
}
