// Package models - organization.go defines the Organization model: a top-level
// named group with a unique display name and a URL-safe slug derived from it.
package models

import "time"

// Organization represents a top-level group with members and nested teams.
// Slug is always recomputed from Name at write time; it is never set directly.
type Organization struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Slug            string    `db:"slug" json:"slug"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	PubliclyVisible bool      `db:"publicly_visible" json:"publicly_visible"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
