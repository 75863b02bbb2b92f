// Package middleware provides Gin HTTP middleware for authentication,
// rate limiting, security headers, request IDs, and Prometheus metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Security → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the actor identity; handlers read it back with ActorFromContext.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/djstein/orgs/internal/auth"
	"github.com/djstein/orgs/internal/db/repositories"
	"github.com/djstein/orgs/internal/orgs"
)

const actorKey = "actor"

// ActorFromContext returns the actor set by the auth middleware, or the
// anonymous actor when no authentication was presented.
func ActorFromContext(c *gin.Context) orgs.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(orgs.Actor); ok {
			return actor
		}
	}
	return orgs.Anonymous()
}

// AuthMiddleware validates the bearer JWT and sets the actor in the request
// context. Requests without valid credentials are rejected with 401.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		// The token is stateless but the user row is authoritative: a deleted
		// user's outstanding tokens must stop working immediately.
		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(actorKey, orgs.Actor{
			UserID:   user.ID,
			Username: user.Username,
			Elevated: user.Superuser,
		})
		c.Next()
	}
}

// OptionalAuthMiddleware - same as AuthMiddleware but doesn't abort if no
// valid auth is presented; the request proceeds as the anonymous actor.
func OptionalAuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
			if err == nil && user != nil {
				c.Set(actorKey, orgs.Actor{
					UserID:   user.ID,
					Username: user.Username,
					Elevated: user.Superuser,
				})
			}
		}

		// Continue regardless of auth status
		c.Next()
	}
}

// bearerToken extracts the token from a "Bearer <token>" authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
