// members.go implements handlers for organization membership management.
// Mutations are authorized against the resolved organization before the store
// is called; last-owner guard rejections surface as 412 and are counted.
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

// MemberHandlers handles organization membership endpoints
type MemberHandlers struct {
	store    *orgs.OrganizationStore
	resolver *orgs.Resolver
}

// NewMemberHandlers creates a new MemberHandlers instance
func NewMemberHandlers(store *orgs.OrganizationStore, resolver *orgs.Resolver) *MemberHandlers {
	return &MemberHandlers{store: store, resolver: resolver}
}

// @Summary      List organization members
// @Description  List members of an organization. Owners and elevated callers see the full roster; everyone else sees only publicly visible members.
// @Tags         Members
// @Produce      json
// @Param        org_slug  path   string  true   "Organization slug"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "members: []models.MemberWithUser, pagination: {page, per_page, total}"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/members [get]
// ListHandler lists members of an organization visible to the caller
// GET /api/v1/orgs/:org_slug/members
func (h *MemberHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)
		page, perPage := parsePagination(c)

		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}

		members, err := h.resolver.ListVisibleMembers(c.Request.Context(), actor, org)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"members":    paginate(members, page, perPage),
			"pagination": paginationMeta(page, perPage, len(members)),
		})
	}
}

// AddMemberRequest represents the request to add a member to an organization
type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// @Summary      Add organization member
// @Description  Add a user to an organization by username with the given role.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug  path  string            true  "Organization slug"
// @Param        body      body  AddMemberRequest  true  "Username and role (OWNER or MEMBER)"
// @Success      201  {object}  map[string]interface{}  "member: models.Member"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or user not found"
// @Failure      409  {object}  map[string]interface{}  "User is already a member"
// @Failure      412  {object}  map[string]interface{}  "Invalid role"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/members [post]
// AddHandler adds a user to an organization
// POST /api/v1/orgs/:org_slug/members
func (h *MemberHandlers) AddHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddMemberRequest
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
		if err := h.resolver.AuthorizeOrgMutation(c.Request.Context(), actor, org); err != nil {
			respondDomainError(c, err)
			return
		}

		member, err := h.store.AddMember(c.Request.Context(), org, req.Username, models.Role(req.Role))
		if err != nil {
			respondDomainError(c, err)
			return
		}
		telemetry.MembershipMutationsTotal.WithLabelValues("organization", "add").Inc()

		c.JSON(http.StatusCreated, gin.H{
			"member": member,
		})
	}
}

// UpdateMemberRequest represents the request to update a member's role and/or
// public visibility. Nil fields are left unchanged.
type UpdateMemberRequest struct {
	Role            *string `json:"role"`
	PubliclyVisible *bool   `json:"publicly_visible"`
}

// @Summary      Update organization member
// @Description  Change a member's role and/or public visibility. Demoting the sole owner is refused.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        org_slug  path  string               true  "Organization slug"
// @Param        username  path  string               true  "Member username"
// @Param        body      body  UpdateMemberRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "member: models.Member"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or member not found"
// @Failure      412  {object}  map[string]interface{}  "Invalid role or sole-owner demotion"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/members/{username} [patch]
// UpdateHandler changes a member's role and/or visibility
// PATCH /api/v1/orgs/:org_slug/members/:username
func (h *MemberHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}
		if req.Role == nil && req.PubliclyVisible == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: nothing to update",
			})
			return
		}

		actor := middleware.ActorFromContext(c)
		username := c.Param("username")
		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if err := h.resolver.AuthorizeOrgMutation(c.Request.Context(), actor, org); err != nil {
			respondDomainError(c, err)
			return
		}

		var member *models.Member
		if req.Role != nil {
			member, err = h.store.UpdateMemberRole(c.Request.Context(), org, username, models.Role(*req.Role))
			if err != nil {
				if errors.Is(err, orgs.ErrPreconditionFailed) {
					telemetry.OwnershipGuardRejectionsTotal.WithLabelValues("organization").Inc()
				}
				respondDomainError(c, err)
				return
			}
			telemetry.MembershipMutationsTotal.WithLabelValues("organization", "role_change").Inc()
		}
		if req.PubliclyVisible != nil {
			member, err = h.store.UpdateMemberVisibility(c.Request.Context(), org, username, *req.PubliclyVisible)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			telemetry.MembershipMutationsTotal.WithLabelValues("organization", "visibility_change").Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"member": member,
		})
	}
}

// @Summary      Remove organization member
// @Description  Remove a user from an organization, cascading their team memberships. Removing the sole owner is refused.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        org_slug  path  string  true  "Organization slug"
// @Param        username  path  string  true  "Member username"
// @Success      200  {object}  map[string]interface{}  "message: Member removed"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an owner"
// @Failure      404  {object}  map[string]interface{}  "Organization or member not found"
// @Failure      412  {object}  map[string]interface{}  "Member is the sole owner"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/orgs/{org_slug}/members/{username} [delete]
// RemoveHandler removes a user from an organization
// DELETE /api/v1/orgs/:org_slug/members/:username
func (h *MemberHandlers) RemoveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFromContext(c)
		org, err := h.resolver.ResolveOrganization(c.Request.Context(), actor, c.Param("org_slug"))
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if err := h.resolver.AuthorizeOrgMutation(c.Request.Context(), actor, org); err != nil {
			respondDomainError(c, err)
			return
		}

		if err := h.store.RemoveMember(c.Request.Context(), org, c.Param("username")); err != nil {
			if errors.Is(err, orgs.ErrPreconditionFailed) {
				telemetry.OwnershipGuardRejectionsTotal.WithLabelValues("organization").Inc()
			}
			respondDomainError(c, err)
			return
		}
		telemetry.MembershipMutationsTotal.WithLabelValues("organization", "remove").Inc()

		c.JSON(http.StatusOK, gin.H{
			"message": "Member removed",
		})
	}
}
