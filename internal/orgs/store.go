// store.go implements the organization store: creation is an explicit
// create-with-owner operation (an organization with zero members is never
// observable), routine updates never touch membership, and member mutations
// run their last-owner guard under an exclusive lock on the organization row.
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

// OrganizationStore owns Organization and Member rows and their invariants.
type OrganizationStore struct {
	db    *sqlx.DB
	orgs  *repositories.OrganizationRepository
	users IdentityDirectory
}

// NewOrganizationStore creates a new organization store.
func NewOrganizationStore(db *sqlx.DB, orgs *repositories.OrganizationRepository, users IdentityDirectory) *OrganizationStore {
	return &OrganizationStore{db: db, orgs: orgs, users: users}
}

// CreateOrganizationParams are the caller-supplied fields for Create.
type CreateOrganizationParams struct {
	Name            string
	PubliclyVisible bool
}

// UpdateOrganizationParams are the optional fields for Update. Nil fields are
// left unchanged. Activity and membership are deliberately not updatable here.
type UpdateOrganizationParams struct {
	Name            *string
	PubliclyVisible *bool
}

// Create persists a new organization together with its creator's OWNER
// membership as one atomic unit. Any authenticated actor may create an
// organization; anonymous actors fail ErrPermissionDenied. A duplicate name
// or derived slug fails ErrConflict.
func (s *OrganizationStore) Create(ctx context.Context, actor Actor, params CreateOrganizationParams) (*models.Organization, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: organization creation requires an authenticated user", ErrPermissionDenied)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrPreconditionFailed)
	}

	org := &models.Organization{
		Name:            params.Name,
		Slug:            Slugify(params.Name),
		IsActive:        true,
		PubliclyVisible: params.PubliclyVisible,
		CreatedBy:       actor.UserID,
	}

	if existing, err := s.orgs.GetByName(ctx, org.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: organization name %q already exists", ErrConflict, org.Name)
	}
	if existing, err := s.orgs.GetBySlug(ctx, org.Slug); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: organization slug %q already exists", ErrConflict, org.Slug)
	}

	err := inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.orgs.CreateTx(ctx, tx, org); err != nil {
			return err
		}
		owner := &models.Member{
			UserID:         actor.UserID,
			OrganizationID: org.ID,
			Role:           models.RoleOwner,
		}
		return s.orgs.AddMemberTx(ctx, tx, owner)
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: organization %q already exists", ErrConflict, org.Name)
		}
		return nil, err
	}

	return org, nil
}

// Update edits an organization's name and/or public visibility. Only an OWNER
// member or an elevated actor may update; the slug is recomputed whenever the
// name changes and a resulting collision fails ErrConflict.
func (s *OrganizationStore) Update(ctx context.Context, actor Actor, org *models.Organization, params UpdateOrganizationParams) (*models.Organization, error) {
	if err := s.authorize(ctx, actor, org.ID); err != nil {
		return nil, err
	}

	if params.Name != nil && *params.Name != org.Name {
		if *params.Name == "" {
			return nil, fmt.Errorf("%w: organization name is required", ErrPreconditionFailed)
		}
		newSlug := Slugify(*params.Name)
		if existing, err := s.orgs.GetByName(ctx, *params.Name); err != nil {
			return nil, err
		} else if existing != nil && existing.ID != org.ID {
			return nil, fmt.Errorf("%w: organization name %q already exists", ErrConflict, *params.Name)
		}
		if existing, err := s.orgs.GetBySlug(ctx, newSlug); err != nil {
			return nil, err
		} else if existing != nil && existing.ID != org.ID {
			return nil, fmt.Errorf("%w: organization slug %q already exists", ErrConflict, newSlug)
		}
		org.Name = *params.Name
		org.Slug = newSlug
	}
	if params.PubliclyVisible != nil {
		org.PubliclyVisible = *params.PubliclyVisible
	}

	if err := s.orgs.Update(ctx, org); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: organization %q already exists", ErrConflict, org.Name)
		}
		return nil, err
	}

	return org, nil
}

// Deactivate marks the organization inactive, excluding it from all listing
// and resolution paths. Nothing in this core reactivates an organization.
func (s *OrganizationStore) Deactivate(ctx context.Context, actor Actor, org *models.Organization) error {
	if err := s.authorize(ctx, actor, org.ID); err != nil {
		return err
	}
	return s.orgs.SetActive(ctx, org.ID, false)
}

// Delete hard-deletes the organization and cascades to all of its teams,
// members, and team members in one transaction. Delete is a fully-authorized
// destructive act: it intentionally bypasses the last-owner guard.
func (s *OrganizationStore) Delete(ctx context.Context, actor Actor, org *models.Organization) error {
	if err := s.authorize(ctx, actor, org.ID); err != nil {
		return err
	}

	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.orgs.DeleteCascadeTx(ctx, tx, org.ID)
	})
}

// AddMember adds a user to the organization by username. The username is
// resolved through the identity directory; an unknown user fails ErrNotFound
// and an existing membership fails ErrConflict. Authorization is the caller's
// concern (see Resolver.AuthorizeOrgMutation).
func (s *OrganizationStore) AddMember(ctx context.Context, org *models.Organization, username string, role models.Role) (*models.Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrPreconditionFailed, role)
	}

	user, err := s.users.LookupUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}

	existing, err := s.orgs.GetMemberByUserID(ctx, org.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user %q is already a member of organization %q", ErrConflict, username, org.Slug)
	}

	member := &models.Member{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           role,
	}
	err = inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.orgs.AddMemberTx(ctx, tx, member)
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %q is already a member of organization %q", ErrConflict, username, org.Slug)
		}
		return nil, err
	}

	return member, nil
}

// RemoveMember removes a user's membership, cascading any team memberships
// that reference it. A user who is not currently a member fails ErrNotFound.
// Removing the organization's sole OWNER fails ErrPreconditionFailed; the
// guard runs under an exclusive lock on the organization row so two
// concurrent removals cannot both observe two owners.
func (s *OrganizationStore) RemoveMember(ctx context.Context, org *models.Organization, username string) error {
	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.orgs.LockTx(ctx, tx, org.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: organization %q", ErrNotFound, org.Slug)
			}
			return err
		}

		member, err := s.orgs.GetMemberByUsernameTx(ctx, tx, org.ID, username)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: user %q is not a member of organization %q", ErrNotFound, username, org.Slug)
		}

		if member.IsOwner() {
			owners, err := s.orgs.CountOwnersTx(ctx, tx, org.ID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return fmt.Errorf("%w: cannot remove the only owner of organization %q", ErrPreconditionFailed, org.Slug)
			}
		}

		return s.orgs.RemoveMemberTx(ctx, tx, member.ID)
	})
}

// UpdateMemberRole changes a member's organization role. Demoting the sole
// OWNER away from OWNER fails ErrPreconditionFailed under the same lock
// discipline as RemoveMember.
func (s *OrganizationStore) UpdateMemberRole(ctx context.Context, org *models.Organization, username string, role models.Role) (*models.Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrPreconditionFailed, role)
	}

	var updated *models.Member
	err := inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.orgs.LockTx(ctx, tx, org.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: organization %q", ErrNotFound, org.Slug)
			}
			return err
		}

		member, err := s.orgs.GetMemberByUsernameTx(ctx, tx, org.ID, username)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("%w: user %q is not a member of organization %q", ErrNotFound, username, org.Slug)
		}

		if member.IsOwner() && role != models.RoleOwner {
			owners, err := s.orgs.CountOwnersTx(ctx, tx, org.ID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return fmt.Errorf("%w: cannot demote the only owner of organization %q", ErrPreconditionFailed, org.Slug)
			}
		}

		if err := s.orgs.UpdateMemberRoleTx(ctx, tx, member.ID, role); err != nil {
			return err
		}
		member.Role = role
		updated = &member.Member
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// UpdateMemberVisibility changes a member's public visibility flag.
func (s *OrganizationStore) UpdateMemberVisibility(ctx context.Context, org *models.Organization, username string, visible bool) (*models.Member, error) {
	member, err := s.orgs.GetMemberByUsername(ctx, org.ID, username)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: user %q is not a member of organization %q", ErrNotFound, username, org.Slug)
	}

	if err := s.orgs.UpdateMemberVisibility(ctx, member.ID, visible); err != nil {
		return nil, err
	}
	member.PubliclyVisible = visible

	return &member.Member, nil
}

// IsUserMember reports whether the named user is a member of the organization.
// Unknown usernames are simply not members; no error is raised for them.
func (s *OrganizationStore) IsUserMember(ctx context.Context, org *models.Organization, username string) (bool, error) {
	member, err := s.orgs.GetMemberByUsername(ctx, org.ID, username)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

// authorize allows elevated actors and OWNER members; everyone else fails
// ErrPermissionDenied.
func (s *OrganizationStore) authorize(ctx context.Context, actor Actor, orgID string) error {
	if actor.Elevated {
		return nil
	}
	if !actor.Authenticated() {
		return fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	owner, err := s.orgs.HasOwner(ctx, orgID, actor.UserID)
	if err != nil {
		return err
	}
	if !owner {
		return fmt.Errorf("%w: user is not an owner of this organization", ErrPermissionDenied)
	}
	return nil
}
