package middleware

import (
	"strings"

	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/constants"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
}

// AuthMiddleware guards routes behind a session token.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{authUC: params.AuthUC}
}

// Protect resolves the session token from the Authorization header or the session cookie
// and stores the account on the request context.
func (m *AuthMiddleware) Protect(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		account, err := m.authUC.Authenticate(c.Request().Context(), sessionToken(c))
		if err != nil {
			return err
		}

		ctx := deliverycontext.WithAccount(c.Request().Context(), account)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RestrictTo allows only accounts holding one of the roles. It must run after Protect.
func (m *AuthMiddleware) RestrictTo(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account, ok := GetAccount(c)
			if !ok {
				return domainerrors.ErrNotAuthenticated
			}
			if !account.HasRole(roles...) {
				return domainerrors.ErrForbidden
			}

			return next(c)
		}
	}
}

// GetAccount returns the account stored by Protect.
func GetAccount(c echo.Context) (*entity.Account, bool) {
	return deliverycontext.GetAccount(c.Request().Context())
}

func sessionToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := c.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "loggedout" {
		return cookie.Value
	}

	return ""
}
