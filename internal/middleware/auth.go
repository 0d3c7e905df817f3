package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tourbus/internal/auth"
	"tourbus/internal/domain"
)

const claimsKey = "auth_claims"

// Authenticate validates the bearer token and stores its claims on the context.
func Authenticate(tokens *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header must be a bearer token")
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRoles rejects callers whose token carries none of roles.
// It must run after Authenticate.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		abortAuth(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
	}
}

// ClaimsFrom returns the authenticated caller, or nil when auth is disabled or
// the request is anonymous.
func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
