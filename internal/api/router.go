// Package api wires together all HTTP routes for the membership service.
//
// Route grouping philosophy:
//   - Read routes use optional authentication: anonymous callers get the
//     public view, authenticated callers additionally see the organizations
//     and teams they belong to. Visibility is resolved per request, never
//     cached across callers.
//   - Mutation routes always require authentication and run under a stricter
//     rate limit. Authorization beyond authentication (owner checks, the
//     last-owner guards) lives in the domain layer, not in middleware.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/djstein/orgs/internal/config"
	"github.com/djstein/orgs/internal/db/repositories"
	"github.com/djstein/orgs/internal/middleware"
	"github.com/djstein/orgs/internal/orgs"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible
// for calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	teamRepo := repositories.NewTeamRepository(db)

	// Domain layer: stores own mutations and their invariants, the resolver
	// owns per-caller visibility and authorization checks.
	orgStore := orgs.NewOrganizationStore(db, orgRepo, userRepo)
	teamStore := orgs.NewTeamStore(db, orgRepo, teamRepo)
	resolver := orgs.NewResolver(orgRepo, teamRepo)

	// Handlers
	orgHandlers := NewOrganizationHandlers(orgStore, resolver)
	memberHandlers := NewMemberHandlers(orgStore, resolver)
	teamHandlers := NewTeamHandlers(teamStore, resolver)
	teamMemberHandlers := NewTeamMemberHandlers(teamStore, resolver)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters
	generalCfg := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.Enabled {
		if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
			generalCfg.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
		}
		if cfg.Security.RateLimiting.Burst > 0 {
			generalCfg.BurstSize = cfg.Security.RateLimiting.Burst
		}
	}
	generalRateLimiter := middleware.NewRateLimiter(generalCfg)
	mutationRateLimiter := middleware.NewRateLimiter(middleware.MutationRateLimitConfig())

	apiV1 := router.Group("/api/v1")

	// Read endpoints: optional auth, per-caller visibility
	readGroup := apiV1.Group("")
	readGroup.Use(middleware.OptionalAuthMiddleware(userRepo))
	readGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	{
		readGroup.GET("/orgs", orgHandlers.ListHandler())
		readGroup.GET("/orgs/:org_slug", orgHandlers.GetHandler())
		readGroup.GET("/orgs/:org_slug/members", memberHandlers.ListHandler())
		readGroup.GET("/orgs/:org_slug/teams", teamHandlers.ListHandler())
		readGroup.GET("/orgs/:org_slug/teams/:team_slug", teamHandlers.GetHandler())
		readGroup.GET("/orgs/:org_slug/teams/:team_slug/members", teamMemberHandlers.ListHandler())
	}

	// Mutation endpoints: authentication required, stricter rate limit
	writeGroup := apiV1.Group("")
	writeGroup.Use(middleware.AuthMiddleware(userRepo))
	writeGroup.Use(middleware.RateLimitMiddleware(mutationRateLimiter))
	{
		writeGroup.POST("/orgs", orgHandlers.CreateHandler())
		writeGroup.PATCH("/orgs/:org_slug", orgHandlers.UpdateHandler())
		writeGroup.DELETE("/orgs/:org_slug", orgHandlers.DeleteHandler())
		writeGroup.POST("/orgs/:org_slug/deactivate", orgHandlers.DeactivateHandler())

		writeGroup.POST("/orgs/:org_slug/members", memberHandlers.AddHandler())
		writeGroup.PATCH("/orgs/:org_slug/members/:username", memberHandlers.UpdateHandler())
		writeGroup.DELETE("/orgs/:org_slug/members/:username", memberHandlers.RemoveHandler())

		writeGroup.POST("/orgs/:org_slug/teams", teamHandlers.CreateHandler())
		writeGroup.PATCH("/orgs/:org_slug/teams/:team_slug", teamHandlers.UpdateHandler())
		writeGroup.DELETE("/orgs/:org_slug/teams/:team_slug", teamHandlers.DeleteHandler())
		writeGroup.POST("/orgs/:org_slug/teams/:team_slug/deactivate", teamHandlers.DeactivateHandler())

		writeGroup.POST("/orgs/:org_slug/teams/:team_slug/members", teamMemberHandlers.AddHandler())
		writeGroup.PATCH("/orgs/:org_slug/teams/:team_slug/members/:username", teamMemberHandlers.UpdateHandler())
		writeGroup.DELETE("/orgs/:org_slug/teams/:team_slug/members/:username", teamMemberHandlers.RemoveHandler())
	}

	bg := &BackgroundServices{
		rateLimiters: []*middleware.RateLimiter{generalRateLimiter, mutationRateLimiter},
	}

	return router, bg
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
