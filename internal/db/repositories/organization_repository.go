// organization_repository.go implements OrganizationRepository, providing
// database queries for organizations and their members: lookups scoped by
// activity/visibility/membership for the resolver, and transaction-scoped
// mutations (with aggregate row locks) for the organization store.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/djstein/orgs/internal/db/models"
)

// OrganizationRepository handles database operations for organizations and members
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByID retrieves an organization by ID regardless of its activity state
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, is_active, publicly_visible, created_by, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetByName retrieves an organization by its unique display name
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, is_active, publicly_visible, created_by, created_at, updated_at
		FROM organizations
		WHERE name = $1
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetBySlug retrieves an organization by slug regardless of activity or visibility
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, is_active, publicly_visible, created_by, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetActiveBySlugForUser retrieves the active organization with the given slug
// where the user holds a membership. This is the first phase of slug resolution.
func (r *OrganizationRepository) GetActiveBySlugForUser(ctx context.Context, slug, userID string) (*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.is_active, o.publicly_visible, o.created_by, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN members m ON m.organization_id = o.id
		WHERE o.slug = $1 AND o.is_active = TRUE AND m.user_id = $2
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, slug, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization for user: %w", err)
	}

	return org, nil
}

// GetActivePublicBySlug retrieves the active, publicly visible organization
// with the given slug. This is the fallback phase of slug resolution.
func (r *OrganizationRepository) GetActivePublicBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, is_active, publicly_visible, created_by, created_at, updated_at
		FROM organizations
		WHERE slug = $1 AND is_active = TRUE AND publicly_visible = TRUE
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get public organization: %w", err)
	}

	return org, nil
}

// ListActivePublic retrieves all active, publicly visible organizations
func (r *OrganizationRepository) ListActivePublic(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT id, name, slug, is_active, publicly_visible, created_by, created_at, updated_at
		FROM organizations
		WHERE is_active = TRUE AND publicly_visible = TRUE
		ORDER BY created_at DESC
	`

	orgs := make([]*models.Organization, 0)
	if err := r.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list public organizations: %w", err)
	}

	return orgs, nil
}

// ListActiveForUser retrieves all active organizations the user is a member of
func (r *OrganizationRepository) ListActiveForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.is_active, o.publicly_visible, o.created_by, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN members m ON m.organization_id = o.id
		WHERE o.is_active = TRUE AND m.user_id = $1
		ORDER BY o.created_at DESC
	`

	orgs := make([]*models.Organization, 0)
	if err := r.db.SelectContext(ctx, &orgs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list organizations for user: %w", err)
	}

	return orgs, nil
}

// CreateTx inserts a new organization inside the given transaction and fills
// in the generated ID and timestamps
func (r *OrganizationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, slug, is_active, publicly_visible, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		org.Name, org.Slug, org.IsActive, org.PubliclyVisible, org.CreatedBy,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// Update persists name, slug, and public visibility changes
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, publicly_visible = $4, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, org.ID, org.Name, org.Slug, org.PubliclyVisible)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	return nil
}

// SetActive flips the organization's activity flag
func (r *OrganizationRepository) SetActive(ctx context.Context, orgID string, active bool) error {
	query := `
		UPDATE organizations
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, orgID, active)
	if err != nil {
		return fmt.Errorf("failed to set organization activity: %w", err)
	}

	return nil
}

// DeleteCascadeTx hard-deletes an organization and every row that hangs off
// it, in dependency order. The schema's ON DELETE CASCADE would reach the same
// end state; the deletes are explicit so the cascade is visible and testable.
func (r *OrganizationRepository) DeleteCascadeTx(ctx context.Context, tx *sqlx.Tx, orgID string) error {
	statements := []string{
		`DELETE FROM team_members WHERE organization_id = $1`,
		`DELETE FROM members WHERE organization_id = $1`,
		`DELETE FROM teams WHERE organization_id = $1`,
		`DELETE FROM organizations WHERE id = $1`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, orgID); err != nil {
			return fmt.Errorf("failed to cascade-delete organization: %w", err)
		}
	}

	return nil
}

// LockTx takes an exclusive row lock on the organization so that concurrent
// guard-and-mutate sequences against the same aggregate serialize. The second
// transaction blocks here and re-evaluates its guard against committed state.
func (r *OrganizationRepository) LockTx(ctx context.Context, tx *sqlx.Tx, orgID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM organizations WHERE id = $1 FOR UPDATE`, orgID).Scan(&id)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to lock organization: %w", err)
	}

	return nil
}

// === Member operations ===

// GetMemberByUserID retrieves a user's membership in an organization
func (r *OrganizationRepository) GetMemberByUserID(ctx context.Context, orgID, userID string) (*models.Member, error) {
	query := `
		SELECT id, user_id, organization_id, role, publicly_visible, created_at, updated_at
		FROM members
		WHERE organization_id = $1 AND user_id = $2
	`

	member := &models.Member{}
	err := r.db.GetContext(ctx, member, query, orgID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// GetMemberByUsername retrieves a membership by the member's username,
// including the username for display
func (r *OrganizationRepository) GetMemberByUsername(ctx context.Context, orgID, username string) (*models.MemberWithUser, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.publicly_visible, m.created_at, m.updated_at,
		       u.username
		FROM members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND u.username = $2
	`

	member := &models.MemberWithUser{}
	err := r.db.GetContext(ctx, member, query, orgID, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by username: %w", err)
	}

	return member, nil
}

// GetMemberByUsernameTx is GetMemberByUsername inside a transaction, for
// guard-and-mutate sequences that must observe locked state
func (r *OrganizationRepository) GetMemberByUsernameTx(ctx context.Context, tx *sqlx.Tx, orgID, username string) (*models.MemberWithUser, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.publicly_visible, m.created_at, m.updated_at,
		       u.username
		FROM members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND u.username = $2
	`

	member := &models.MemberWithUser{}
	err := tx.GetContext(ctx, member, query, orgID, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by username: %w", err)
	}

	return member, nil
}

// ListMembers retrieves all members of an organization with usernames
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.publicly_visible, m.created_at, m.updated_at,
		       u.username
		FROM members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at DESC
	`

	members := make([]*models.MemberWithUser, 0)
	if err := r.db.SelectContext(ctx, &members, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// ListPublicMembers retrieves only the publicly visible members of an organization
func (r *OrganizationRepository) ListPublicMembers(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.publicly_visible, m.created_at, m.updated_at,
		       u.username
		FROM members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND m.publicly_visible = TRUE
		ORDER BY m.created_at DESC
	`

	members := make([]*models.MemberWithUser, 0)
	if err := r.db.SelectContext(ctx, &members, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list public members: %w", err)
	}

	return members, nil
}

// AddMemberTx inserts a membership row inside the given transaction and fills
// in the generated ID and timestamps
func (r *OrganizationRepository) AddMemberTx(ctx context.Context, tx *sqlx.Tx, member *models.Member) error {
	query := `
		INSERT INTO members (user_id, organization_id, role, publicly_visible)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		member.UserID, member.OrganizationID, member.Role, member.PubliclyVisible,
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// RemoveMemberTx deletes a membership row and, first, every team membership
// that references it
func (r *OrganizationRepository) RemoveMemberTx(ctx context.Context, tx *sqlx.Tx, memberID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE member_id = $1`, memberID); err != nil {
		return fmt.Errorf("failed to remove member's team memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, memberID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

// UpdateMemberRoleTx changes a member's organization role
func (r *OrganizationRepository) UpdateMemberRoleTx(ctx context.Context, tx *sqlx.Tx, memberID string, role models.Role) error {
	query := `
		UPDATE members
		SET role = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := tx.ExecContext(ctx, query, memberID, role)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	return nil
}

// UpdateMemberVisibility changes a member's public visibility flag
func (r *OrganizationRepository) UpdateMemberVisibility(ctx context.Context, memberID string, visible bool) error {
	query := `
		UPDATE members
		SET publicly_visible = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, memberID, visible)
	if err != nil {
		return fmt.Errorf("failed to update member visibility: %w", err)
	}

	return nil
}

// CountOwnersTx counts the organization's OWNER members inside a transaction.
// Callers must hold the aggregate lock (LockTx) before acting on the count.
func (r *OrganizationRepository) CountOwnersTx(ctx context.Context, tx *sqlx.Tx, orgID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM members WHERE organization_id = $1 AND role = 'OWNER'`
	if err := tx.QueryRowContext(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}

	return count, nil
}

// HasMember reports whether the user holds a membership in the organization
func (r *OrganizationRepository) HasMember(ctx context.Context, orgID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE organization_id = $1 AND user_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

// HasOwner reports whether the user holds an OWNER membership in the organization
func (r *OrganizationRepository) HasOwner(ctx context.Context, orgID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE organization_id = $1 AND user_id = $2 AND role = 'OWNER')`
	if err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}

	return exists, nil
}
