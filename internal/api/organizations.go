// organizations.go implements handlers for organization CRUD and lifecycle
// operations. Reads go through the resolver so anonymous callers only ever
// see public organizations; an organization hidden from the caller is
// indistinguishable from one that does not exist.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djstein/orgs/internal/middleware"
	"github.com/djstein/orgs/internal/orgs"
)

// OrganizationHandlers handles organization management endpoints
type OrganizationHandlers struct {
	store    *orgs.OrganizationStore
	resolver *orgs.Resolver
}

// NewOrganizationHandlers creates a new OrganizationHandlers instance
func NewOrganizationHandlers(store *orgs.OrganizationStore, resolver *orgs.Resolver) *OrganizationHandlers {
	return &OrganizationHandlers{store: store, resolver: resolver}
}

// @Summary      List organizations
// @Description  List organizations visible to the caller: public organizations plus any the caller is a member of.
// @Tags         Organizations
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "organizations: []models.Organization, pagination: {page, per_page, total}"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs [get]
// ListHandler lists organizations visible to the caller with pagination
// GET /api/v1/orgs?page=1&per_page=20
func (h *OrganizationHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)
		page, perPage := parsePagination(c)

		visible, err := h.resolver.ListVisibleOrganizations(c.Request.Context(), actor)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organizations": paginate(visible, page, perPage),
			"pagination":    paginationMeta(page, perPage, len(visible)),
		})
	}
}

// CreateOrganizationRequest represents the request to create a new organization
type CreateOrganizationRequest struct {
	Name            string `json:"name" binding:"required"`
	PubliclyVisible bool   `json:"publicly_visible"`
}

// @Summary      Create organization
// @Description  Create a new organization. The caller becomes its first OWNER member.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateOrganizationRequest  true  "Organization name and public visibility"
// @Success      201  {object}  map[string]interface{}  "organization: models.Organization"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Authentication required"
// @Failure      409  {object}  map[string]interface{}  "Organization name or slug already exists"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs [post]
// CreateHandler creates a new organization with the caller as its first owner
// POST /api/v1/orgs
func (h *OrganizationHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		actor := middleware.ActorFromContext(c)
		org, err := h.store.Create(c.Request.Context(), actor, orgs.CreateOrganizationParams{
			Name:            req.Name,
			PubliclyVisible: req.PubliclyVisible,
		})
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"organization": org,
		})
	}
}

// @Summary      Get organization
// @Description  Retrieve one organization by slug, subject to the caller's visibility.
// @Tags         Organizations
// @Produce      json
// @Param        org_slug  path  string  true  "Organization slug"
// @Success      200  {object}  map[string]interface{}  "organization: models.Organization"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug} [get]
// GetHandler retrieves a specific organization by slug
// GET /api/v1/orgs/:org_slug
func (h *OrganizationHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)

		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organization": org,
		})
	}
}

// UpdateOrganizationRequest represents the request to update an organization.
// Nil fields are left unchanged.
type UpdateOrganizationRequest struct {
	Name            *string `json:"name"`
	PubliclyVisible *bool   `json:"publicly_visible"`
}

// @Summary      Update organization
// @Description  Rename an organization and/or change its public visibility. Renaming recomputes the slug.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug  path  string                     true  "Organization slug"
// @Param        body      body  UpdateOrganizationRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "organization: models.Organization"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an owner"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      409  {object}  map[string]interface{}  "New name or slug already exists"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug} [patch]
// UpdateHandler updates an organization's name and/or visibility
// PATCH /api/v1/orgs/:org_slug
func (h *OrganizationHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateOrganizationRequest
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

		org, err = h.store.Update(c.Request.Context(), actor, org, orgs.UpdateOrganizationParams{
			Name:            req.Name,
			PubliclyVisible: req.PubliclyVisible,
		})
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organization": org,
		})
	}
}

// @Summary      Deactivate organization
// @Description  Mark an organization inactive, removing it from all listing and resolution paths.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        org_slug  path  string  true  "Organization slug"
// @Success      200  {object}  map[string]interface{}  "message: Organization deactivated"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an owner"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/deactivate [post]
// DeactivateHandler marks an organization inactive
// POST /api/v1/orgs/:org_slug/deactivate
func (h *OrganizationHandlers) DeactivateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)

		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}

		if err := h.store.Deactivate(c.Request.Context(), actor, org); err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Organization deactivated",
		})
	}
}

// @Summary      Delete organization
// @Description  Hard-delete an organization, cascading to its teams and memberships.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        org_slug  path  string  true  "Organization slug"
// @Success      200  {object}  map[string]interface{}  "message: Organization deleted"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an owner"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug} [delete]
// DeleteHandler deletes an organization and everything nested under it
// DELETE /api/v1/orgs/:org_slug
func (h *OrganizationHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)

		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}

		if err := h.store.Delete(c.Request.Context(), actor, org); err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Organization deleted",
		})
	}
}
