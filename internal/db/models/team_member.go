// Package models - team_member.go defines the TeamMember model. A TeamMember
// references a Member row rather than a user directly, so team membership can
// only exist for users who are already organization members; the referential
// chain is enforced at write time, not reconstructed by query-time joins.
package models

import "time"

// TeamMember represents a Member's membership record within one team.
// (OrganizationID, TeamID, MemberID) is unique.
type TeamMember struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	TeamID         string    `db:"team_id" json:"team_id"`
	MemberID       string    `db:"member_id" json:"member_id"`
	TeamRole       TeamRole  `db:"team_role" json:"team_role"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// IsOwner reports whether the team member holds the OWNER role in its team.
func (tm *TeamMember) IsOwner() bool {
	return tm.TeamRole == TeamRoleOwner
}

// TeamMemberWithUser is a TeamMember joined with the underlying member's
// username and organization role for display.
type TeamMemberWithUser struct {
	TeamMember
	Username string `db:"username" json:"username"`
	OrgRole  Role   `db:"org_role" json:"org_role"`
}
