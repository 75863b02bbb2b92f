// Package models - member.go defines the Member model binding one user to one
// organization, plus the joined view used when listing members with user details.
package models

import "time"

// Member represents a user's membership record within one organization.
// (UserID, OrganizationID) is unique: a user holds at most one membership per
// organization.
type Member struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	OrganizationID  string    `db:"organization_id" json:"organization_id"`
	Role            Role      `db:"role" json:"role"`
	PubliclyVisible bool      `db:"publicly_visible" json:"publicly_visible"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// IsOwner reports whether the member holds the OWNER role in its organization.
func (m *Member) IsOwner() bool {
	return m.Role == RoleOwner
}

// MemberWithUser is a Member joined with the user's username for display.
type MemberWithUser struct {
	Member
	Username string `db:"username" json:"username"`
}
