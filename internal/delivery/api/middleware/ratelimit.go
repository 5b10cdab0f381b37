package middleware

import (
	"log/slog"
	"math"
	"strconv"

	deliverycontext "parkshare/internal/delivery/context"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/infra/ratelimit"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// RateLimitMiddlewareParams holds dependencies for RateLimitMiddleware, injected by Fx.
type RateLimitMiddlewareParams struct {
	fx.In

	Limiter *ratelimit.Limiter `optional:"true"`
	Logger  *slog.Logger
}

// RateLimitMiddleware throttles credential endpoints per client IP.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware is the constructor for RateLimitMiddleware.
// A nil limiter lets every request through.
func NewRateLimitMiddleware(params RateLimitMiddlewareParams) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: params.Limiter, logger: params.Logger}
}

// Limit takes a token from the bucket of scope and client IP.
func (m *RateLimitMiddleware) Limit(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m.limiter == nil {
			return next
		}

		return func(c echo.Context) error {
			ctx := c.Request().Context()
			result, err := m.limiter.Allow(ctx, scope+":"+c.RealIP())
			if err != nil {
				// fail open
				deliverycontext.GetLoggerOrDefault(ctx, m.logger).Warn("Rate limiter unavailable",
					slog.String("scope", scope), slog.Any("error", err))

				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			header.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if !result.Allowed {
				seconds := int(math.Ceil(result.RetryAfter.Seconds()))
				header.Set(echo.HeaderRetryAfter, strconv.Itoa(max(seconds, 1)))

				return domainerrors.ErrTooManyRequests
			}

			return next(c)
		}
	}
}
