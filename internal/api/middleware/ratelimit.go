package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "heartlink.io/trustengine/internal/pkg/errors"
	"heartlink.io/trustengine/internal/pkg/logger"
	"heartlink.io/trustengine/internal/ratelimit"
)

// RateLimit returns a middleware enforcing the named policy. Authenticated
// requests are limited per user, anonymous ones per client IP. Quota state
// is reported in X-RateLimit headers; denials answer 429 with Retry-After.
//
// A store failure fails open: throttling is protection, not a dependency
// the whole API should die on.
func RateLimit(limiter *ratelimit.Limiter, policy string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := ratelimit.IPIdentifier(c.ClientIP())
		if uid := c.GetString("user_id"); uid != "" {
			identifier = ratelimit.UserIdentifier(uid)
		}

		decision, err := limiter.Consume(c.Request.Context(), identifier, policy)
		if err != nil {
			logger.Error("rate limit check failed, allowing request",
				zap.String("policy", policy),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Writer.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			appErr := apperrors.ErrRateLimitedf(retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"params":  appErr.Params,
			})
			return
		}

		c.Next()
	}
}
