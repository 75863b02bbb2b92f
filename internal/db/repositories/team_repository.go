// team_repository.go implements TeamRepository, providing database queries for
// teams and team members nested under an organization. Team membership rows
// reference member rows, never users directly, so every query that starts from
// a username walks users → members → team_members.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/djstein/orgs/internal/db/models"
)

// TeamRepository handles database operations for teams and team members
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// GetByID retrieves a team by ID regardless of its activity state
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	query := `
		SELECT id, organization_id, name, slug, is_active, visible_to_organization, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1
	`

	team := &models.Team{}
	err := r.db.GetContext(ctx, team, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// GetBySlug retrieves a team by its organization-scoped slug
func (r *TeamRepository) GetBySlug(ctx context.Context, orgID, slug string) (*models.Team, error) {
	query := `
		SELECT id, organization_id, name, slug, is_active, visible_to_organization, created_by, created_at, updated_at
		FROM teams
		WHERE organization_id = $1 AND slug = $2
	`

	team := &models.Team{}
	err := r.db.GetContext(ctx, team, query, orgID, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// GetActiveBySlugForUser retrieves the active team with the given slug where
// the user is a team member. First phase of team slug resolution.
func (r *TeamRepository) GetActiveBySlugForUser(ctx context.Context, orgID, slug, userID string) (*models.Team, error) {
	query := `
		SELECT t.id, t.organization_id, t.name, t.slug, t.is_active, t.visible_to_organization, t.created_by, t.created_at, t.updated_at
		FROM teams t
		INNER JOIN team_members tm ON tm.team_id = t.id
		INNER JOIN members m ON m.id = tm.member_id
		WHERE t.organization_id = $1 AND t.slug = $2 AND t.is_active = TRUE AND m.user_id = $3
	`

	team := &models.Team{}
	err := r.db.GetContext(ctx, team, query, orgID, slug, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team for user: %w", err)
	}

	return team, nil
}

// GetActiveVisibleBySlug retrieves the active, organization-visible team with
// the given slug. Fallback phase of team slug resolution.
func (r *TeamRepository) GetActiveVisibleBySlug(ctx context.Context, orgID, slug string) (*models.Team, error) {
	query := `
		SELECT id, organization_id, name, slug, is_active, visible_to_organization, created_by, created_at, updated_at
		FROM teams
		WHERE organization_id = $1 AND slug = $2 AND is_active = TRUE AND visible_to_organization = TRUE
	`

	team := &models.Team{}
	err := r.db.GetContext(ctx, team, query, orgID, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visible team: %w", err)
	}

	return team, nil
}

// GetActiveBySlug retrieves the active team with the given slug regardless of
// visibility. Used when the actor is elevated or owns the organization.
func (r *TeamRepository) GetActiveBySlug(ctx context.Context, orgID, slug string) (*models.Team, error) {
	query := `
		SELECT id, organization_id, name, slug, is_active, visible_to_organization, created_by, created_at, updated_at
		FROM teams
		WHERE organization_id = $1 AND slug = $2 AND is_active = TRUE
	`

	team := &models.Team{}
	err := r.db.GetContext(ctx, team, query, orgID, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// ListActive retrieves all active teams of an organization
func (r *TeamRepository) ListActive(ctx context.Context, orgID string) ([]*models.Team, error) {
	query := `
		SELECT id, organization_id, name, slug, is_active, visible_to_organization, created_by, created_at, updated_at
		FROM teams
		WHERE organization_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`

	teams := make([]*models.Team, 0)
	if err := r.db.SelectContext(ctx, &teams, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	return teams, nil
}

// ListActiveVisible retrieves the active teams flagged visible to the whole organization
func (r *TeamRepository) ListActiveVisible(ctx context.Context, orgID string) ([]*models.Team, error) {
	query := `
		SELECT id, organization_id, name, slug, is_active, visible_to_organization, created_by, created_at, updated_at
		FROM teams
		WHERE organization_id = $1 AND is_active = TRUE AND visible_to_organization = TRUE
		ORDER BY created_at DESC
	`

	teams := make([]*models.Team, 0)
	if err := r.db.SelectContext(ctx, &teams, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list visible teams: %w", err)
	}

	return teams, nil
}

// ListActiveForUser retrieves the active teams the user belongs to within an organization
func (r *TeamRepository) ListActiveForUser(ctx context.Context, orgID, userID string) ([]*models.Team, error) {
	query := `
		SELECT t.id, t.organization_id, t.name, t.slug, t.is_active, t.visible_to_organization, t.created_by, t.created_at, t.updated_at
		FROM teams t
		INNER JOIN team_members tm ON tm.team_id = t.id
		INNER JOIN members m ON m.id = tm.member_id
		WHERE t.organization_id = $1 AND t.is_active = TRUE AND m.user_id = $2
		ORDER BY t.created_at DESC
	`

	teams := make([]*models.Team, 0)
	if err := r.db.SelectContext(ctx, &teams, query, orgID, userID); err != nil {
		return nil, fmt.Errorf("failed to list teams for user: %w", err)
	}

	return teams, nil
}

// CreateTx inserts a new team inside the given transaction and fills in the
// generated ID and timestamps
func (r *TeamRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, team *models.Team) error {
	query := `
		INSERT INTO teams (organization_id, name, slug, is_active, visible_to_organization, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		team.OrganizationID, team.Name, team.Slug, team.IsActive, team.VisibleToOrganization, team.CreatedBy,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	return nil
}

// Update persists name, slug, and organization-visibility changes
func (r *TeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams
		SET name = $2, slug = $3, visible_to_organization = $4, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, team.ID, team.Name, team.Slug, team.VisibleToOrganization)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}

	return nil
}

// SetActive flips the team's activity flag
func (r *TeamRepository) SetActive(ctx context.Context, teamID string, active bool) error {
	query := `
		UPDATE teams
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, teamID, active)
	if err != nil {
		return fmt.Errorf("failed to set team activity: %w", err)
	}

	return nil
}

// DeleteCascadeTx hard-deletes a team and its team member rows, explicitly,
// in dependency order
func (r *TeamRepository) DeleteCascadeTx(ctx context.Context, tx *sqlx.Tx, teamID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to cascade-delete team members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	return nil
}

// LockTx takes an exclusive row lock on the team, serializing guard-and-mutate
// sequences against the same team
func (r *TeamRepository) LockTx(ctx context.Context, tx *sqlx.Tx, teamID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM teams WHERE id = $1 FOR UPDATE`, teamID).Scan(&id)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to lock team: %w", err)
	}

	return nil
}

// === Team member operations ===

// GetTeamMemberByUsername retrieves a team membership by the underlying user's username
func (r *TeamRepository) GetTeamMemberByUsername(ctx context.Context, teamID, username string) (*models.TeamMemberWithUser, error) {
	query := `
		SELECT tm.id, tm.organization_id, tm.team_id, tm.member_id, tm.team_role, tm.created_at, tm.updated_at,
		       u.username, m.role AS org_role
		FROM team_members tm
		INNER JOIN members m ON m.id = tm.member_id
		INNER JOIN users u ON u.id = m.user_id
		WHERE tm.team_id = $1 AND u.username = $2
	`

	tm := &models.TeamMemberWithUser{}
	err := r.db.GetContext(ctx, tm, query, teamID, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}

	return tm, nil
}

// GetTeamMemberByUsernameTx is GetTeamMemberByUsername inside a transaction
func (r *TeamRepository) GetTeamMemberByUsernameTx(ctx context.Context, tx *sqlx.Tx, teamID, username string) (*models.TeamMemberWithUser, error) {
	query := `
		SELECT tm.id, tm.organization_id, tm.team_id, tm.member_id, tm.team_role, tm.created_at, tm.updated_at,
		       u.username, m.role AS org_role
		FROM team_members tm
		INNER JOIN members m ON m.id = tm.member_id
		INNER JOIN users u ON u.id = m.user_id
		WHERE tm.team_id = $1 AND u.username = $2
	`

	tm := &models.TeamMemberWithUser{}
	err := tx.GetContext(ctx, tm, query, teamID, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}

	return tm, nil
}

// ListTeamMembers retrieves all members of a team with usernames and org roles
func (r *TeamRepository) ListTeamMembers(ctx context.Context, teamID string) ([]*models.TeamMemberWithUser, error) {
	query := `
		SELECT tm.id, tm.organization_id, tm.team_id, tm.member_id, tm.team_role, tm.created_at, tm.updated_at,
		       u.username, m.role AS org_role
		FROM team_members tm
		INNER JOIN members m ON m.id = tm.member_id
		INNER JOIN users u ON u.id = m.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.created_at DESC
	`

	members := make([]*models.TeamMemberWithUser, 0)
	if err := r.db.SelectContext(ctx, &members, query, teamID); err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	return members, nil
}

// AddTeamMemberTx inserts a team membership row inside the given transaction
// and fills in the generated ID and timestamps
func (r *TeamRepository) AddTeamMemberTx(ctx context.Context, tx *sqlx.Tx, tm *models.TeamMember) error {
	query := `
		INSERT INTO team_members (organization_id, team_id, member_id, team_role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		tm.OrganizationID, tm.TeamID, tm.MemberID, tm.TeamRole,
	).Scan(&tm.ID, &tm.CreatedAt, &tm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	return nil
}

// RemoveTeamMemberTx deletes a team membership row
func (r *TeamRepository) RemoveTeamMemberTx(ctx context.Context, tx *sqlx.Tx, teamMemberID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE id = $1`, teamMemberID); err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	return nil
}

// UpdateTeamMemberRoleTx changes a team member's role
func (r *TeamRepository) UpdateTeamMemberRoleTx(ctx context.Context, tx *sqlx.Tx, teamMemberID string, role models.TeamRole) error {
	query := `
		UPDATE team_members
		SET team_role = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := tx.ExecContext(ctx, query, teamMemberID, role)
	if err != nil {
		return fmt.Errorf("failed to update team member role: %w", err)
	}

	return nil
}

// CountOwnersTx counts the team's OWNER members inside a transaction. Callers
// must hold the aggregate lock (LockTx) before acting on the count.
func (r *TeamRepository) CountOwnersTx(ctx context.Context, tx *sqlx.Tx, teamID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND team_role = 'OWNER'`
	if err := tx.QueryRowContext(ctx, query, teamID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count team owners: %w", err)
	}

	return count, nil
}

// HasTeamMember reports whether the user belongs to the team
func (r *TeamRepository) HasTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM team_members tm
			INNER JOIN members m ON m.id = tm.member_id
			WHERE tm.team_id = $1 AND m.user_id = $2
		)
	`
	if err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}

	return exists, nil
}

// HasTeamOwner reports whether the user holds the OWNER role on the team
func (r *TeamRepository) HasTeamOwner(ctx context.Context, teamID, userID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM team_members tm
			INNER JOIN members m ON m.id = tm.member_id
			WHERE tm.team_id = $1 AND m.user_id = $2 AND tm.team_role = 'OWNER'
		)
	`
	if err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check team ownership: %w", err)
	}

	return exists, nil
}
