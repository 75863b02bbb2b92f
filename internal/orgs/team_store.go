// team_store.go implements the team store. Teams nest inside one organization
// and team membership references the creator's existing Member row, so a team
// member is by construction an organization member. Creation is atomic
// create-with-owner, mirroring organizations one level down.
package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/djstein/orgs/internal/db/models"
	"github.com/djstein/orgs/internal/db/repositories"
)

// TeamStore owns Team and TeamMember rows and their invariants. It depends on
// the organization repository for membership validation.
type TeamStore struct {
	db    *sqlx.DB
	orgs  *repositories.OrganizationRepository
	teams *repositories.TeamRepository
}

// NewTeamStore creates a new team store.
func NewTeamStore(db *sqlx.DB, orgs *repositories.OrganizationRepository, teams *repositories.TeamRepository) *TeamStore {
	return &TeamStore{db: db, orgs: orgs, teams: teams}
}

// CreateTeamParams are the caller-supplied fields for Create.
type CreateTeamParams struct {
	Name                  string
	VisibleToOrganization bool
}

// UpdateTeamParams are the optional fields for Update. Nil fields are left
// unchanged.
type UpdateTeamParams struct {
	Name                  *string
	VisibleToOrganization *bool
}

// Create persists a new team together with its creator's OWNER team
// membership as one atomic unit. The creator must already hold a Member row
// in the organization, else ErrPreconditionFailed; the team membership row
// references that Member row. The slug is unique within the organization only.
func (s *TeamStore) Create(ctx context.Context, org *models.Organization, creator Actor, params CreateTeamParams) (*models.Team, error) {
	if !creator.Authenticated() {
		return nil, fmt.Errorf("%w: team creation requires an authenticated user", ErrPermissionDenied)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrPreconditionFailed)
	}

	member, err := s.orgs.GetMemberByUserID(ctx, org.ID, creator.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: team creator must be a member of organization %q", ErrPreconditionFailed, org.Slug)
	}

	team := &models.Team{
		OrganizationID:        org.ID,
		Name:                  params.Name,
		Slug:                  Slugify(params.Name),
		IsActive:              true,
		VisibleToOrganization: params.VisibleToOrganization,
		CreatedBy:             creator.UserID,
	}

	if existing, err := s.teams.GetBySlug(ctx, org.ID, team.Slug); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: team slug %q already exists in organization %q", ErrConflict, team.Slug, org.Slug)
	}

	err = inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.teams.CreateTx(ctx, tx, team); err != nil {
			return err
		}
		owner := &models.TeamMember{
			OrganizationID: org.ID,
			TeamID:         team.ID,
			MemberID:       member.ID,
			TeamRole:       models.TeamRoleOwner,
		}
		return s.teams.AddTeamMemberTx(ctx, tx, owner)
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: team %q already exists in organization %q", ErrConflict, team.Slug, org.Slug)
		}
		return nil, err
	}

	return team, nil
}

// Update edits a team's name and/or organization visibility. Allowed for
// elevated actors, owners of the surrounding organization, and owners of the
// team itself. The slug is recomputed when the name changes.
func (s *TeamStore) Update(ctx context.Context, actor Actor, team *models.Team, params UpdateTeamParams) (*models.Team, error) {
	if err := s.authorize(ctx, actor, team); err != nil {
		return nil, err
	}

	if params.Name != nil && *params.Name != team.Name {
		if *params.Name == "" {
			return nil, fmt.Errorf("%w: team name is required", ErrPreconditionFailed)
		}
		newSlug := Slugify(*params.Name)
		if existing, err := s.teams.GetBySlug(ctx, team.OrganizationID, newSlug); err != nil {
			return nil, err
		} else if existing != nil && existing.ID != team.ID {
			return nil, fmt.Errorf("%w: team slug %q already exists in this organization", ErrConflict, newSlug)
		}
		team.Name = *params.Name
		team.Slug = newSlug
	}
	if params.VisibleToOrganization != nil {
		team.VisibleToOrganization = *params.VisibleToOrganization
	}

	if err := s.teams.Update(ctx, team); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: team %q already exists in this organization", ErrConflict, team.Slug)
		}
		return nil, err
	}

	return team, nil
}

// Deactivate marks the team inactive, excluding it from all listing and
// resolution paths.
func (s *TeamStore) Deactivate(ctx context.Context, actor Actor, team *models.Team) error {
	if err := s.authorize(ctx, actor, team); err != nil {
		return err
	}
	return s.teams.SetActive(ctx, team.ID, false)
}

// Delete hard-deletes the team and cascades its team member rows. Like
// organization deletion, this bypasses the last-owner guard by design.
func (s *TeamStore) Delete(ctx context.Context, actor Actor, team *models.Team) error {
	if err := s.authorize(ctx, actor, team); err != nil {
		return err
	}

	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.teams.DeleteCascadeTx(ctx, tx, team.ID)
	})
}

// AddTeamMember adds a user to the team by username. The user must already be
// a member of the team's organization (ErrPreconditionFailed otherwise); an
// existing team membership fails ErrConflict. The new row references the
// user's Member row, never the user directly.
func (s *TeamStore) AddTeamMember(ctx context.Context, team *models.Team, username string, role models.TeamRole) (*models.TeamMember, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid team role %q", ErrPreconditionFailed, role)
	}

	member, err := s.orgs.GetMemberByUsername(ctx, team.OrganizationID, username)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: user %q is not a member of this organization", ErrPreconditionFailed, username)
	}

	existing, err := s.teams.GetTeamMemberByUsername(ctx, team.ID, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user %q is already a member of team %q", ErrConflict, username, team.Slug)
	}

	tm := &models.TeamMember{
		OrganizationID: team.OrganizationID,
		TeamID:         team.ID,
		MemberID:       member.ID,
		TeamRole:       role,
	}
	err = inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.teams.AddTeamMemberTx(ctx, tx, tm)
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %q is already a member of team %q", ErrConflict, username, team.Slug)
		}
		return nil, err
	}

	return tm, nil
}

// RemoveTeamMember removes a user's team membership. A user who is not
// currently a team member fails ErrNotFound; removing the team's sole OWNER
// fails ErrPreconditionFailed under an exclusive lock on the team row.
func (s *TeamStore) RemoveTeamMember(ctx context.Context, team *models.Team, username string) error {
	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.teams.LockTx(ctx, tx, team.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: team %q", ErrNotFound, team.Slug)
			}
			return err
		}

		tm, err := s.teams.GetTeamMemberByUsernameTx(ctx, tx, team.ID, username)
		if err != nil {
			return err
		}
		if tm == nil {
			return fmt.Errorf("%w: user %q is not a member of team %q", ErrNotFound, username, team.Slug)
		}

		if tm.IsOwner() {
			owners, err := s.teams.CountOwnersTx(ctx, tx, team.ID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return fmt.Errorf("%w: cannot remove the only owner of team %q", ErrPreconditionFailed, team.Slug)
			}
		}

		return s.teams.RemoveTeamMemberTx(ctx, tx, tm.ID)
	})
}

// UpdateTeamMemberRole changes a team member's role. Demoting the sole team
// OWNER fails ErrPreconditionFailed under the same lock discipline as
// RemoveTeamMember.
func (s *TeamStore) UpdateTeamMemberRole(ctx context.Context, team *models.Team, username string, role models.TeamRole) (*models.TeamMember, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid team role %q", ErrPreconditionFailed, role)
	}

	var updated *models.TeamMember
	err := inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.teams.LockTx(ctx, tx, team.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: team %q", ErrNotFound, team.Slug)
			}
			return err
		}

		tm, err := s.teams.GetTeamMemberByUsernameTx(ctx, tx, team.ID, username)
		if err != nil {
			return err
		}
		if tm == nil {
			return fmt.Errorf("%w: user %q is not a member of team %q", ErrNotFound, username, team.Slug)
		}

		if tm.IsOwner() && role != models.TeamRoleOwner {
			owners, err := s.teams.CountOwnersTx(ctx, tx, team.ID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return fmt.Errorf("%w: cannot demote the only owner of team %q", ErrPreconditionFailed, team.Slug)
			}
		}

		if err := s.teams.UpdateTeamMemberRoleTx(ctx, tx, tm.ID, role); err != nil {
			return err
		}
		tm.TeamRole = role
		updated = &tm.TeamMember
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// IsUserTeamMember reports whether the named user is a member of the team.
func (s *TeamStore) IsUserTeamMember(ctx context.Context, team *models.Team, username string) (bool, error) {
	tm, err := s.teams.GetTeamMemberByUsername(ctx, team.ID, username)
	if err != nil {
		return false, err
	}
	return tm != nil, nil
}

// authorize allows elevated actors, owners of the team's organization, and
// owners of the team itself.
func (s *TeamStore) authorize(ctx context.Context, actor Actor, team *models.Team) error {
	if actor.Elevated {
		return nil
	}
	if !actor.Authenticated() {
		return fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	orgOwner, err := s.orgs.HasOwner(ctx, team.OrganizationID, actor.UserID)
	if err != nil {
		return err
	}
	if orgOwner {
		return nil
	}
	teamOwner, err := s.teams.HasTeamOwner(ctx, team.ID, actor.UserID)
	if err != nil {
		return err
	}
	if !teamOwner {
		return fmt.Errorf("%w: user is not an owner of this team or its organization", ErrPermissionDenied)
	}
	return nil
}
