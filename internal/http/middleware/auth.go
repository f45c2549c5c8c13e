// README: Firebase ID-token auth. Searches may be anonymous; a verified uid keys the search quota.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scout/internal/infra"
)

const (
	ctxUID  = "auth.uid"
	ctxRole = "auth.role"
)

// Auth requires a valid bearer token. A nil verifier lets every request
// through as anonymous.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, true)
}

// OptionalAuth verifies a bearer token when one is sent. Requests without an
// Authorization header continue as anonymous; a bad token is still rejected.
func OptionalAuth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, false)
}

func authenticate(verifier infra.TokenVerifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" && !required {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, token.UID)
		if role := token.Role(); role != "" {
			c.Set(ctxRole, role)
		}
		c.Next()
	}
}

// CallerUID returns the verified uid, or "" for anonymous requests.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

// CallerRole returns the "role" custom claim, if any.
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}
