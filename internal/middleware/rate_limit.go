package middleware

import (
	"fmt"
	"strconv"

	"chatflow/internal/ratelimit"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	log     logger.Logger
}

// NewRateLimitMiddleware returns a middleware factory. A nil limiter turns
// every limit into a pass-through.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		log:     log,
	}
}

// ByIP limits per client address. Used on the unauthenticated routes.
func (m *RateLimitMiddleware) ByIP(scope string) gin.HandlerFunc {
	return m.limit(scope, func(c *gin.Context) string { return c.ClientIP() })
}

// ByUser limits per authenticated caller. Must run after RequireAuth.
func (m *RateLimitMiddleware) ByUser(scope string) gin.HandlerFunc {
	return m.limit(scope, UserID)
}

func (m *RateLimitMiddleware) limit(scope string, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil {
			c.Next()
			return
		}

		res, err := m.limiter.Allow(c.Request.Context(), scope+":"+keyFn(c))
		if err != nil {
			// Fail open: a Redis outage must not take the chat down.
			m.log.Error("Rate limit check failed", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Error(fmt.Errorf("%w: try again later", apperrors.ErrRateLimited))
			c.Abort()
			return
		}
		c.Next()
	}
}
