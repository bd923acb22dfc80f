package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Identity headers injected by the api-gateway after token validation.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

const (
	RoleUser     = "user"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// AuthMiddleware trusts the gateway identity headers and rejects requests
// without a user id.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			role = RoleUser
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextEmail, c.GetHeader(HeaderUserEmail))
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(ContextRole)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id.
func UserID(c *gin.Context) string { return c.GetString(ContextUserID) }

// Role returns the authenticated user's role.
func Role(c *gin.Context) string { return c.GetString(ContextRole) }

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(c *gin.Context) bool { return Role(c) == RoleAdmin }
