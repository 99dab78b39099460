package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the Gin context key the auth middleware stores the
// authenticated user ID under.
const userIDKey = "userID"

// requireAuth rejects requests without a valid Bearer token and stores the
// token's user ID in the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortError(c, http.StatusUnauthorized, "missing authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortError(c, http.StatusUnauthorized, "authorization header must be: Bearer <token>")
			return
		}

		userID, err := s.auth.ParseToken(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUser returns the authenticated user ID set by requireAuth.
func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
