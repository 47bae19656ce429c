package middleware

import (
	"net/http"
	"strings"

	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	UserIDFromToken(token string) (string, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
	log    logger.Logger
}

func NewAuthMiddleware(tokens TokenValidator, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		log:    log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		userID, err := m.tokens.UserIDFromToken(parts[1])
		if err != nil {
			m.log.Debug("Rejected token", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller set by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
