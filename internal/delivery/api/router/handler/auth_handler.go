// Package handler contains the HTTP handlers of the API.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"parkshare/config"
	"parkshare/internal/delivery/api/middleware"
	"parkshare/internal/delivery/api/response"
	"parkshare/internal/domain/constants"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/infra/metrics"
	"parkshare/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Config *config.Config
	Logger *slog.Logger
}

// AuthHandler serves the signup, signin and credential recovery endpoints.
type AuthHandler struct {
	authUC       usecase.AuthUsecase
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:       params.AuthUC,
		cookieSecure: params.Config.HTTP.CookieSecure,
		logger:       params.Logger,
	}
}

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Username        string      `json:"username" validate:"required,alphanum,min=3,max=30"`
	Email           string      `json:"email" validate:"required,email"`
	Phone           string      `json:"phone" validate:"required,e164"`
	Password        string      `json:"password" validate:"required"`
	PasswordConfirm string      `json:"passwordConfirm" validate:"required"`
	Role            entity.Role `json:"role,omitempty" validate:"omitempty,oneof=client provider"`
}

// SigninRequest is the body of POST /signin. Identifier is an email or a username.
type SigninRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ConfirmPinRequest is the body of POST /confirm-pin.
type ConfirmPinRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Pin        string `json:"pin" validate:"required,numeric"`
}

// ForgotPasswordRequest is the body of POST /forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of PATCH /reset-password/:token.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// ChangePasswordRequest is the body of PATCH /change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// bindAndValidate decodes the body into req and runs its validation tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
	}

	return c.Validate(req)
}

// Signup creates an account and sends its first PIN.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.Signup(c.Request().Context(), &usecase.SignupInput{
		Username:        req.Username,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
	})
	metrics.ObserveAuth("signup", err)
	if err != nil {
		return err
	}

	return response.Message(c, http.StatusCreated, output.Message)
}

// Signin checks the credentials and sends a PIN.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req SigninRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.Signin(c.Request().Context(), &usecase.SigninInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	metrics.ObserveAuth("signin", err)
	if err != nil {
		return err
	}

	return response.Message(c, http.StatusOK, output.Message)
}

// ConfirmPin consumes the PIN and opens a session.
func (h *AuthHandler) ConfirmPin(c echo.Context) error {
	var req ConfirmPinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authUC.ConfirmPin(c.Request().Context(), &usecase.ConfirmPinInput{
		Identifier: req.Identifier,
		Pin:        req.Pin,
	})
	metrics.ObserveAuth("confirm_pin", err)
	if err != nil {
		return err
	}

	return h.sendSession(c, session)
}

// SendConfirmationEmail emails a confirmation link to the logged in account.
func (h *AuthHandler) SendConfirmationEmail(c echo.Context) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return domainerrors.ErrNotAuthenticated
	}

	output, err := h.authUC.SendConfirmationEmail(c.Request().Context(), account)
	if err != nil {
		return err
	}

	return response.Message(c, http.StatusOK, output.Message)
}

// ConfirmEmail consumes an email confirmation token.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	output, err := h.authUC.ConfirmEmail(c.Request().Context(), c.Param("token"))
	metrics.ObserveAuth("confirm_email", err)
	if err != nil {
		return err
	}

	return response.Message(c, http.StatusOK, output.Message)
}

// ForgotPassword emails a reset link when the address belongs to an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}

	return response.Message(c, http.StatusOK, output.Message)
}

// CheckResetToken tells the client whether a reset link is still usable.
func (h *AuthHandler) CheckResetToken(c echo.Context) error {
	valid, err := h.authUC.CheckResetToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, map[string]bool{"valid": valid})
}

// ResetPassword sets a new password through a reset link.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authUC.ResetPassword(c.Request().Context(), c.Param("token"), &usecase.ResetPasswordInput{
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	metrics.ObserveAuth("reset_password", err)
	if err != nil {
		return err
	}

	return h.sendSession(c, session)
}

// ChangePassword replaces the password of the logged in account.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return domainerrors.ErrNotAuthenticated
	}

	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authUC.ChangePassword(c.Request().Context(), account, &usecase.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	metrics.ObserveAuth("change_password", err)
	if err != nil {
		return err
	}

	return h.sendSession(c, session)
}

// Logout overwrites the session cookie with a short-lived placeholder.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie("loggedout", time.Now().Add(10*time.Second)))

	return response.Message(c, http.StatusOK, "Logged out")
}

func (h *AuthHandler) sendSession(c echo.Context, session *usecase.SessionOutput) error {
	c.SetCookie(h.cookie(session.Token, session.ExpiresAt))

	return response.Success(c, http.StatusOK, &SessionView{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Account:   newAccountView(session.Account),
	})
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
