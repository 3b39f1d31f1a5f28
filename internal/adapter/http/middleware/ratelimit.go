package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "points-commerce-engine/internal/adapter/storage/redis"
	"points-commerce-engine/pkg/apperror"
	"points-commerce-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-endpoint-group rate limits.
// Command groups are bounded tighter than read-only queries.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"allocations":     {Limit: 30, Window: time.Minute},
		"sales":           {Limit: 120, Window: time.Minute},
		"payments":        {Limit: 100, Window: time.Minute},
		"payments_refund": {Limit: 30, Window: time.Minute},
		"cards":           {Limit: 60, Window: time.Minute},
		"cards_spend":     {Limit: 120, Window: time.Minute},
		"cash":            {Limit: 60, Window: time.Minute},
		"directory":       {Limit: 30, Window: time.Minute},
		"queries":         {Limit: 120, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source. Authenticated
// requests are limited per actor, anonymous ones per client IP.
func extractIdentifier(c *gin.Context) string {
	if aid, exists := c.Get(CtxActorID); exists {
		return fmt.Sprintf("%v", aid)
	}
	return c.ClientIP()
}
