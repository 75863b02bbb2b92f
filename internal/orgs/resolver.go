// resolver.go implements the read-side visibility layer. All slug resolution
// and listing goes through the resolver so that the membership-first,
// public-second precedence is applied in exactly one place.
package orgs

import (
	"context"
	"fmt"

	"github.com/djstein/orgs/internal/db/models"
	"github.com/djstein/orgs/internal/db/repositories"
)

// Resolver answers "what can this actor see" questions against organizations,
// teams, and their membership rosters. It never mutates anything.
type Resolver struct {
	orgs  *repositories.OrganizationRepository
	teams *repositories.TeamRepository
}

// NewResolver creates a new resolver.
func NewResolver(orgs *repositories.OrganizationRepository, teams *repositories.TeamRepository) *Resolver {
	return &Resolver{orgs: orgs, teams: teams}
}

// ListVisibleOrganizations returns the union of active public organizations
// and the organizations the actor belongs to, deduplicated by ID. Anonymous
// actors see only the public set. Elevated actors are treated like any other
// authenticated user here; listing everything is an administrative query, not
// a visibility question.
func (r *Resolver) ListVisibleOrganizations(ctx context.Context, actor Actor) ([]*models.Organization, error) {
	public, err := r.orgs.ListActivePublic(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return public, nil
	}

	mine, err := r.orgs.ListActiveForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(public)+len(mine))
	out := make([]*models.Organization, 0, len(public)+len(mine))
	for _, org := range public {
		seen[org.ID] = struct{}{}
		out = append(out, org)
	}
	for _, org := range mine {
		if _, ok := seen[org.ID]; ok {
			continue
		}
		seen[org.ID] = struct{}{}
		out = append(out, org)
	}
	return out, nil
}

// ResolveOrganization resolves a slug to an active organization the actor may
// see. Membership is checked before public visibility, so a member of a
// private organization resolves it even though an outsider cannot. A slug
// that exists but is invisible to the actor is indistinguishable from one
// that does not exist.
func (r *Resolver) ResolveOrganization(ctx context.Context, actor Actor, slug string) (*models.Organization, error) {
	if actor.Elevated {
		org, err := r.orgs.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if org == nil || !org.IsActive {
			return nil, fmt.Errorf("%w: organization %q", ErrNotFound, slug)
		}
		return org, nil
	}

	if actor.Authenticated() {
		org, err := r.orgs.GetActiveBySlugForUser(ctx, slug, actor.UserID)
		if err != nil {
			return nil, err
		}
		if org != nil {
			return org, nil
		}
	}

	org, err := r.orgs.GetActivePublicBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("%w: organization %q", ErrNotFound, slug)
	}
	return org, nil
}

// ListVisibleMembers returns the member roster the actor may see. Elevated
// actors and organization owners see every member; everyone else, including
// non-owner members, sees only members who opted into public visibility.
func (r *Resolver) ListVisibleMembers(ctx context.Context, actor Actor, org *models.Organization) ([]*models.MemberWithUser, error) {
	full, err := r.canSeeFullRoster(ctx, actor, org.ID)
	if err != nil {
		return nil, err
	}
	if full {
		return r.orgs.ListMembers(ctx, org.ID)
	}
	return r.orgs.ListPublicMembers(ctx, org.ID)
}

// ListVisibleTeams returns the teams within an organization the actor may
// see. Elevated actors and organization owners see every active team;
// everyone else sees the union of organization-visible teams and the teams
// they belong to, deduplicated by ID.
func (r *Resolver) ListVisibleTeams(ctx context.Context, actor Actor, org *models.Organization) ([]*models.Team, error) {
	full, err := r.canSeeFullRoster(ctx, actor, org.ID)
	if err != nil {
		return nil, err
	}
	if full {
		return r.teams.ListActive(ctx, org.ID)
	}

	visible, err := r.teams.ListActiveVisible(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return visible, nil
	}

	mine, err := r.teams.ListActiveForUser(ctx, org.ID, actor.UserID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(visible)+len(mine))
	out := make([]*models.Team, 0, len(visible)+len(mine))
	for _, team := range visible {
		seen[team.ID] = struct{}{}
		out = append(out, team)
	}
	for _, team := range mine {
		if _, ok := seen[team.ID]; ok {
			continue
		}
		seen[team.ID] = struct{}{}
		out = append(out, team)
	}
	return out, nil
}

// ResolveTeam resolves a slug to an active team within an organization that
// the actor may see, with the same membership-first precedence as
// organization resolution. Team slugs are scoped to one organization, so the
// surrounding organization must already be resolved.
func (r *Resolver) ResolveTeam(ctx context.Context, actor Actor, org *models.Organization, slug string) (*models.Team, error) {
	full, err := r.canSeeFullRoster(ctx, actor, org.ID)
	if err != nil {
		return nil, err
	}
	if full {
		team, err := r.teams.GetActiveBySlug(ctx, org.ID, slug)
		if err != nil {
			return nil, err
		}
		if team == nil {
			return nil, fmt.Errorf("%w: team %q in organization %q", ErrNotFound, slug, org.Slug)
		}
		return team, nil
	}

	if actor.Authenticated() {
		team, err := r.teams.GetActiveBySlugForUser(ctx, org.ID, slug, actor.UserID)
		if err != nil {
			return nil, err
		}
		if team != nil {
			return team, nil
		}
	}

	team, err := r.teams.GetActiveVisibleBySlug(ctx, org.ID, slug)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("%w: team %q in organization %q", ErrNotFound, slug, org.Slug)
	}
	return team, nil
}

// ListVisibleTeamMembers returns the team's roster if the actor is permitted
// to see it: elevated actors, organization owners, team owners, team members,
// and anyone at all when the team is visible to the whole organization.
// Everyone else fails ErrPermissionDenied; team rosters have no partial view.
func (r *Resolver) ListVisibleTeamMembers(ctx context.Context, actor Actor, team *models.Team) ([]*models.TeamMemberWithUser, error) {
	permitted, err := r.canSeeTeamRoster(ctx, actor, team)
	if err != nil {
		return nil, err
	}
	if !permitted {
		return nil, fmt.Errorf("%w: team roster is not visible to this user", ErrPermissionDenied)
	}
	return r.teams.ListTeamMembers(ctx, team.ID)
}

// AuthorizeOrgMutation allows membership mutations on an organization for
// elevated actors and organization owners only.
func (r *Resolver) AuthorizeOrgMutation(ctx context.Context, actor Actor, org *models.Organization) error {
	if actor.Elevated {
		return nil
	}
	if !actor.Authenticated() {
		return fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	owner, err := r.orgs.HasOwner(ctx, org.ID, actor.UserID)
	if err != nil {
		return err
	}
	if !owner {
		return fmt.Errorf("%w: user is not an owner of organization %q", ErrPermissionDenied, org.Slug)
	}
	return nil
}

// AuthorizeTeamMutation allows membership mutations on a team for elevated
// actors, owners of the team's organization, and owners of the team.
func (r *Resolver) AuthorizeTeamMutation(ctx context.Context, actor Actor, team *models.Team) error {
	if actor.Elevated {
		return nil
	}
	if !actor.Authenticated() {
		return fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	}
	orgOwner, err := r.orgs.HasOwner(ctx, team.OrganizationID, actor.UserID)
	if err != nil {
		return err
	}
	if orgOwner {
		return nil
	}
	teamOwner, err := r.teams.HasTeamOwner(ctx, team.ID, actor.UserID)
	if err != nil {
		return err
	}
	if !teamOwner {
		return fmt.Errorf("%w: user is not an owner of team %q", ErrPermissionDenied, team.Slug)
	}
	return nil
}

func (r *Resolver) canSeeFullRoster(ctx context.Context, actor Actor, orgID string) (bool, error) {
	if actor.Elevated {
		return true, nil
	}
	if !actor.Authenticated() {
		return false, nil
	}
	return r.orgs.HasOwner(ctx, orgID, actor.UserID)
}

func (r *Resolver) canSeeTeamRoster(ctx context.Context, actor Actor, team *models.Team) (bool, error) {
	if team.VisibleToOrganization {
		return true, nil
	}
	if actor.Elevated {
		return true, nil
	}
	if !actor.Authenticated() {
		return false, nil
	}
	orgOwner, err := r.orgs.HasOwner(ctx, team.OrganizationID, actor.UserID)
	if err != nil {
		return false, err
	}
	if orgOwner {
		return true, nil
	}
	return r.teams.HasTeamMember(ctx, team.ID, actor.UserID)
}
