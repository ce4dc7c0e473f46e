package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/interfaces/http/dto"
)

// BurstLimiter counts one request against a key and reports whether it is
// within the window limit. Implemented by ratelimit.RedisLimiter.
type BurstLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// RateLimit returns a per-client burst limiting middleware. It shields the
// gate from floods; the daily quota itself lives in the usage ledger. A
// limiter failure fails open: the ledger stays authoritative either way.
func RateLimit(limiter BurstLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			if log != nil {
				log.Warn("Burst limiter unavailable, admitting request",
					zap.Error(err),
					zap.String("client", key),
				)
			}
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later."))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Next()
	}
}
