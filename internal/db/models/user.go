// Package models - user.go defines the User model backing the identity
// directory. Authentication itself lives elsewhere; this system only resolves
// usernames to stable identities.
package models

import "time"

// User represents an identity known to the directory.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Superuser bool      `db:"superuser" json:"superuser"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
