// teams.go implements handlers for team CRUD and lifecycle operations. Teams
// resolve in two phases inside their organization: the caller's own teams
// first, then org-visible teams; anything else is a 404.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djstein/orgs/internal/db/models"
	"github.com/djstein/orgs/internal/middleware"
	"github.com/djstein/orgs/internal/orgs"
	"github.com/djstein/orgs/internal/telemetry"
)

// TeamHandlers handles team management endpoints
type TeamHandlers struct {
	store    *orgs.TeamStore
	resolver *orgs.Resolver
}

// NewTeamHandlers creates a new TeamHandlers instance
func NewTeamHandlers(store *orgs.TeamStore, resolver *orgs.Resolver) *TeamHandlers {
	return &TeamHandlers{store: store, resolver: resolver}
}

// resolveOrgTeam resolves the :org_slug/:team_slug pair for the caller. Both
// lookups apply the caller's visibility, so a hidden team 404s the same way a
// missing one does.
func (h *TeamHandlers) resolveOrgTeam(c *gin.Context, actor orgs.Actor) (*models.Organization, *models.Team, error) {
	org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
	if err != nil {
		return nil, nil, err
	}
	team, err := h.resolver.ResolveTeam(c.Request.Context(), actor, org, c.Param("team_slug"))
	if err != nil {
		return nil, nil, err
	}
	return org, team, nil
}

// @Summary      List teams
// @Description  List teams of an organization visible to the caller: org-visible teams plus any the caller belongs to. Owners and elevated callers see all active teams.
// @Tags         Teams
// @Produce      json
// @Param        org_slug  path   string  true   "Organization slug"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "teams: []models.Team, pagination: {page, per_page, total}"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams [get]
// ListHandler lists teams of an organization visible to the caller
// GET /api/v1/orgs/:org_slug/teams
func (h *TeamHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)
		page, perPage := parsePagination(c)

		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}

		teams, err := h.resolver.ListVisibleTeams(c.Request.Context(), actor, org)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"teams":      paginate(teams, page, perPage),
			"pagination": paginationMeta(page, perPage, len(teams)),
		})
	}
}

// CreateTeamRequest represents the request to create a team
type CreateTeamRequest struct {
	Name                  string `json:"name" binding:"required"`
	VisibleToOrganization bool   `json:"visible_to_organization"`
}

// @Summary      Create team
// @Description  Create a team inside an organization. The caller must be an organization member and becomes the team's first OWNER.
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug  path  string             true  "Organization slug"
// @Param        body      body  CreateTeamRequest  true  "Team name and org-wide visibility"
// @Success      201  {object}  map[string]interface{}  "team: models.Team"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Authentication required"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      409  {object}  map[string]interface{}  "Team name or slug already exists in this organization"
// @Failure      412  {object}  map[string]interface{}  "Caller is not an organization member"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams [post]
// CreateHandler creates a team with the caller as its first owner
// POST /api/v1/orgs/:org_slug/teams
func (h *TeamHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTeamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		actor := middleware.ActorFromContext(c)
		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}

		team, err := h.store.Create(c.Request.Context(), org, actor, orgs.CreateTeamParams{
			Name:                  req.Name,
			VisibleToOrganization: req.VisibleToOrganization,
		})
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"team": team,
		})
	}
}

// @Summary      Get team
// @Description  Retrieve one team by slug within an organization, subject to the caller's visibility.
// @Tags         Teams
// @Produce      json
// @Param        org_slug   path  string  true  "Organization slug"
// @Param        team_slug  path  string  true  "Team slug"
// @Success      200  {object}  map[string]interface{}  "team: models.Team"
// @Failure      404  {object}  map[string]interface{}  "Organization or team not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug} [get]
// GetHandler retrieves a specific team by slug
// GET /api/v1/orgs/:org_slug/teams/:team_slug
func (h *TeamHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)

		_, team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"team": team,
		})
	}
}

// UpdateTeamRequest represents the request to update a team. Nil fields are
// left unchanged.
type UpdateTeamRequest struct {
	Name                  *string `json:"name"`
	VisibleToOrganization *bool   `json:"visible_to_organization"`
}

// @Summary      Update team
// @Description  Rename a team and/or change its org-wide visibility. Renaming recomputes the slug within the organization.
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug   path  string             true  "Organization slug"
// @Param        team_slug  path  string             true  "Team slug"
// @Param        body       body  UpdateTeamRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "team: models.Team"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a team or organization owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or team not found"
// @Failure      409  {object}  map[string]interface{}  "New name or slug already exists in this organization"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug} [patch]
// UpdateHandler updates a team's name and/or visibility
// PATCH /api/v1/orgs/:org_slug/teams/:team_slug
func (h *TeamHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTeamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		actor := middleware.ActorFromContext(c)
		_, team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		visibilityChanged := req.VisibleToOrganization != nil && *req.VisibleToOrganization != team.VisibleToOrganization

		team, err = h.store.Update(c.Request.Context(), actor, team, orgs.UpdateTeamParams{
			Name:                  req.Name,
			VisibleToOrganization: req.VisibleToOrganization,
		})
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if visibilityChanged {
			telemetry.MembershipMutationsTotal.WithLabelValues("team", "visibility_change").Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"team": team,
		})
	}
}

// @Summary      Deactivate team
// @Description  Mark a team inactive, removing it from all listing and resolution paths.
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        org_slug   path  string  true  "Organization slug"
// @Param        team_slug  path  string  true  "Team slug"
// @Success      200  {object}  map[string]interface{}  "message: Team deactivated"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a team or organization owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or team not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug}/deactivate [post]
// DeactivateHandler marks a team inactive
// POST /api/v1/orgs/:org_slug/teams/:team_slug/deactivate
func (h *TeamHandlers) DeactivateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)

		_, team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		if err := h.store.Deactivate(c.Request.Context(), actor, team); err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Team deactivated",
		})
	}
}

// @Summary      Delete team
// @Description  Hard-delete a team and its memberships.
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        org_slug   path  string  true  "Organization slug"
// @Param        team_slug  path  string  true  "Team slug"
// @Success      200  {object}  map[string]interface{}  "message: Team deleted"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a team or organization owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or team not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/teams/{team_slug} [delete]
// DeleteHandler deletes a team and its memberships
// DELETE /api/v1/orgs/:org_slug/teams/:team_slug
func (h *TeamHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)

		_, team, err := h.resolveOrgTeam(c, actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		if err := h.store.Delete(c.Request.Context(), actor, team); err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Team deleted",
		})
	}
}
