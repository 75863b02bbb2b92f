// team_members.go implements handlers for team membership management. Team
// rosters are only listable by callers who can see the team's membership;
// mutations require a team owner, an organization owner, or elevation.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djstein/orgs/internal/db/models"
	"github.com/djstein/orgs/internal/middleware"
	"github.com/djstein/orgs/internal/orgs"
	"github.com/djstein/orgs/internal/telemetry"
)

// TeamMemberHandlers handles team membership endpoints
type TeamMemberHandlers struct {
	store    *orgs.TeamStore
	resolver *orgs.Resolver
}

// NewTeamMemberHandlers creates a new TeamMemberHandlers instance
func NewTeamMemberHandlers(store *orgs.TeamStore, resolver *orgs.Resolver) *TeamMemberHandlers {
	return &TeamMemberHandlers{store: store, resolver: resolver}
}

func (h *TeamMemberHandlers) resolveOrgTeam(c *gin.Context, actor orgs.Actor) (*models.Team, error) {
	org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
	if err != nil {
		return nil, err
	}
	return h.resolver.ResolveTeam(c.Request.Context(), actor, org, c.Param("team_slug"))
}

// @Summary      List team members
// @Description  List members of a team. Visible to everyone who can see an org-visible team; hidden teams expose their roster only to their own members, organization owners, and elevated callers.
// @Tags         TeamMembers
// @Produce      json
// @Param        org_slug   path   string  true   "Organization slug"
// @Param        team_slug  path   string  true   "Team slug"
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        per_page   query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "team_members: []models.TeamMemberWithUser, pagination: {page, per_page, total}"
// @Failure      403  {object}  map[string]interface{}  "Caller may not view this roster"
// @Failure      404  {object}  map[string]interface{}  "Organization or team not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug}/members [get]
// ListHandler lists members of a team
// GET /api/v1/orgs/:org_slug/teams/:team_slug/members
func (h *TeamMemberHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)
		page, perPage := parsePagination(c)

		team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		members, err := h.resolver.ListVisibleTeamMembers(c.Request.Context(), actor, team)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"team_members": paginate(members, page, perPage),
			"pagination":   paginationMeta(page, perPage, len(members)),
		})
	}
}

// AddTeamMemberRequest represents the request to add a member to a team
type AddTeamMemberRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// @Summary      Add team member
// @Description  Add an organization member to a team by username with the given team role.
// @Tags         TeamMembers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug   path  string                true  "Organization slug"
// @Param        team_slug  path  string                true  "Team slug"
// @Param        body       body  AddTeamMemberRequest  true  "Username and team role (OWNER or MEMBER)"
// @Success      201  {object}  map[string]interface{}  "team_member: models.TeamMember"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a team or organization owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or team not found"
// @Failure      409  {object}  map[string]interface{}  "User is already a team member"
// @Failure      412  {object}  map[string]interface{}  "Invalid role or user is not an organization member"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug}/members [post]
// AddHandler adds an organization member to a team
// POST /api/v1/orgs/:org_slug/teams/:team_slug/members
func (h *TeamMemberHandlers) AddHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddTeamMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		actor := middleware.ActorFromContext(c)
		team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if err := h.resolver.AuthorizeTeamMutation(c.Request.Context(), actor, team); err != nil {
			respondDomainError(c, err)
			return
		}

		member, err := h.store.AddTeamMember(c.Request.Context(), team, req.Username, models.TeamRole(req.Role))
		if err != nil {
			respondDomainError(c, err)
			return
		}
		telemetry.MembershipMutationsTotal.WithLabelValues("team", "add").Inc()

		c.JSON(http.StatusCreated, gin.H{
			"team_member": member,
		})
	}
}

// UpdateTeamMemberRequest represents the request to change a team member's role
type UpdateTeamMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

// @Summary      Update team member
// @Description  Change a team member's role. Demoting the team's sole owner is refused.
// @Tags         TeamMembers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug   path  string                   true  "Organization slug"
// @Param        team_slug  path  string                   true  "Team slug"
// @Param        username   path  string                   true  "Team member username"
// @Param        body       body  UpdateTeamMemberRequest  true  "New team role (OWNER or MEMBER)"
// @Success      200  {object}  map[string]interface{}  "team_member: models.TeamMember"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a team or organization owner"
// @Failure      404  {object}  map[string]interface{}  "Organization, team, or team member not found"
// @Failure      412  {object}  map[string]interface{}  "Invalid role or sole-owner demotion"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug}/members/{username} [patch]
// UpdateHandler changes a team member's role
// PATCH /api/v1/orgs/:org_slug/teams/:team_slug/members/:username
func (h *TeamMemberHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTeamMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		actor := middleware.ActorFromContext(c)
		team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if err := h.resolver.AuthorizeTeamMutation(c.Request.Context(), actor, team); err != nil {
			respondDomainError(c, err)
			return
		}

		member, err := h.store.UpdateTeamMemberRole(c.Request.Context(), team, c.Param("username"), models.TeamRole(req.Role))
		if err != nil {
			if errors.Is(err, orgs.ErrPreconditionFailed) {
				telemetry.OwnershipGuardRejectionsTotal.WithLabelValues("team").Inc()
			}
			respondDomainError(c, err)
			return
		}
		telemetry.MembershipMutationsTotal.WithLabelValues("team", "role_change").Inc()

		c.JSON(http.StatusOK, gin.H{
			"team_member": member,
		})
	}
}

// @Summary      Remove team member
// @Description  Remove a member from a team. Removing the team's sole owner is refused.
// @Tags         TeamMembers
// @Security     Bearer
// @Produce      json
// @Param        org_slug   path  string  true  "Organization slug"
// @Param        team_slug  path  string  true  "Team slug"
// @Param        username   path  string  true  "Team member username"
// @Success      200  {object}  map[string]interface{}  "message: Team member removed"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a team or organization owner"
// @Failure      404  {object}  map[string]interface{}  "Organization, team, or team member not found"
// @Failure      412  {object}  map[string]interface{}  "Member is the team's sole owner"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug}/members/{username} [delete]
// RemoveHandler removes a member from a team
// DELETE /api/v1/orgs/:org_slug/teams/:team_slug/members/:username
func (h *TeamMemberHandlers) RemoveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)
		team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if err := h.resolver.AuthorizeTeamMutation(c.Request.Context(), actor, team); err != nil {
			respondDomainError(c, err)
			return
		}

		if err := h.store.RemoveTeamMember(c.Request.Context(), team, c.Param("username")); err != nil {
			if errors.Is(err, orgs.ErrPreconditionFailed) {
				telemetry.OwnershipGuardRejectionsTotal.WithLabelValues("team").Inc()
			}
			respondDomainError(c, err)
			return
		}
		telemetry.MembershipMutationsTotal.WithLabelValues("team", "remove").Inc()

		c.JSON(http.StatusOK, gin.H{
			"message": "Team member removed",
		})
	}
}
