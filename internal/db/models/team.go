// Package models - team.go defines the Team model: a named group nested inside
// exactly one organization. Team slugs are unique within their organization,
// not globally.
package models

import "time"

// Team represents a group nested inside one organization.
type Team struct {
	ID                    string    `db:"id" json:"id"`
	OrganizationID        string    `db:"organization_id" json:"organization_id"`
	Name                  string    `db:"name" json:"name"`
	Slug                  string    `db:"slug" json:"slug"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	VisibleToOrganization bool      `db:"visible_to_organization" json:"visible_to_organization"`
	CreatedBy             string    `db:"created_by" json:"created_by"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}
