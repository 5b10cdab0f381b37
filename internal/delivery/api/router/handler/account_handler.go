package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"parkshare/internal/delivery/api/middleware"
	"parkshare/internal/delivery/api/response"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AccountHandlerParams holds dependencies for AccountHandler, injected by Fx.
type AccountHandlerParams struct {
	fx.In

	AuthUC    usecase.AuthUsecase
	ParkingUC usecase.ParkingUsecase
	Logger    *slog.Logger
}

// AccountHandler serves the endpoints about the logged in account.
type AccountHandler struct {
	authUC    usecase.AuthUsecase
	parkingUC usecase.ParkingUsecase
	logger    *slog.Logger
}

// NewAccountHandler is the constructor for AccountHandler.
func NewAccountHandler(params AccountHandlerParams) *AccountHandler {
	return &AccountHandler{
		authUC:    params.AuthUC,
		parkingUC: params.ParkingUC,
		logger:    params.Logger,
	}
}

// GetMe returns the logged in account.
func (h *AccountHandler) GetMe(c echo.Context) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return domainerrors.ErrNotAuthenticated
	}

	return response.Success(c, http.StatusOK, newAccountView(account))
}

// DeleteMe soft-deletes the logged in account.
func (h *AccountHandler) DeleteMe(c echo.Context) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return domainerrors.ErrNotAuthenticated
	}

	if err := h.authUC.DeactivateMe(c.Request().Context(), account); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// DeleteAccount removes an account for good.
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("accountId"))
	if err != nil {
		return domainerrors.ErrAccountNotFound
	}

	if err := h.authUC.DeleteAccount(c.Request().Context(), accountID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// GetEarningsReport streams the earnings spreadsheet of the logged in provider.
func (h *AccountHandler) GetEarningsReport(c echo.Context) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return domainerrors.ErrNotAuthenticated
	}

	// buffer so a failure still gets the error envelope
	var buf bytes.Buffer
	if err := h.parkingUC.WriteEarningsReport(c.Request().Context(), account, &buf); err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="earnings.xlsx"`)

	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
