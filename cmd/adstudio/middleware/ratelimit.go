package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/common/logger"
	"github.com/lyzr/adstudio/common/ratelimit"
)

// Limiter counts a request against a key
type Limiter interface {
	Check(ctx context.Context, key string, limit int64, windowSec int) (*ratelimit.Result, error)
}

// WriteRateLimit throttles mutating requests per ad and author.
// Reads are never limited. Limiter errors let the request through.
func WriteRateLimit(limiter Limiter, policies ratelimit.Policies, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			adID := c.Param("ad_id")
			if adID == "" {
				return next(c)
			}

			actor := string(GetActor(c))
			policy := policies.For(actor)

			result, err := limiter.Check(c.Request().Context(), ratelimit.WriteKey(adID, actor), policy.Limit, policy.WindowSeconds)
			if err != nil {
				log.WithContext(c.Request().Context()).Warn("rate limit check failed, allowing request",
					"ad_id", adID,
					"error", err,
				)
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "write_rate_limit_exceeded",
					"message": "Too many changes to this ad. Please wait before trying again.",
					"details": map[string]interface{}{
						"adId":              adID,
						"actor":             actor,
						"limit":             result.Limit,
						"windowSeconds":     policy.WindowSeconds,
						"currentCount":      result.CurrentCount,
						"retryAfterSeconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
