// respond.go maps domain failures to HTTP statuses and implements the shared
// pagination idiom for list endpoints.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/djstein/orgs/internal/middleware"
	"github.com/djstein/orgs/internal/orgs"
)

// respondDomainError translates a typed domain failure into its HTTP status:
// ErrNotFound 404, ErrConflict 409, ErrPreconditionFailed 412,
// ErrPermissionDenied 403. Anything else is an internal error and is logged
// with the request context rather than leaked to the client.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orgs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orgs.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orgs.ErrPreconditionFailed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	case errors.Is(err, orgs.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", requestID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// parsePagination reads page/per_page query parameters with the usual
// defaults and bounds (page >= 1, 1 <= per_page <= 100, default 20).
func parsePagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// paginate slices one page out of an in-memory result set. Visibility
// filtering happens before pagination, so page numbering is stable for a
// given viewer.
func paginate[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// paginationMeta is the envelope attached to every list response.
func paginationMeta(page, perPage, total int) gin.H {
	return gin.H{
		"page":     page,
		"per_page": perPage,
		"total":    total,
	}
}
