package handler

import (
	"log/slog"
	"net/http"

	"parkshare/internal/delivery/api/middleware"
	"parkshare/internal/delivery/api/response"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/infra/metrics"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// ParkingHandlerParams holds dependencies for ParkingHandler, injected by Fx.
type ParkingHandlerParams struct {
	fx.In

	ParkingUC     usecase.ParkingUsecase
	ReservationUC usecase.ReservationUsecase
	Logger        *slog.Logger
}

// ParkingHandler serves listing and reservation endpoints.
type ParkingHandler struct {
	parkingUC     usecase.ParkingUsecase
	reservationUC usecase.ReservationUsecase
	logger        *slog.Logger
}

// NewParkingHandler is the constructor for ParkingHandler.
func NewParkingHandler(params ParkingHandlerParams) *ParkingHandler {
	return &ParkingHandler{
		parkingUC:     params.ParkingUC,
		reservationUC: params.ReservationUC,
		logger:        params.Logger,
	}
}

// CreateParkingRequest is the body of POST /parkings.
type CreateParkingRequest struct {
	Title            string             `json:"title" validate:"required,max=120"`
	Description      string             `json:"description" validate:"max=2000"`
	Type             entity.ParkingType `json:"type" validate:"required,oneof=indoor outdoor"`
	HourlyPriceCents int64              `json:"hourlyPriceCents" validate:"gt=0"`
	Latitude         float64            `json:"latitude" validate:"latitude"`
	Longitude        float64            `json:"longitude" validate:"longitude"`
	Address          string             `json:"address" validate:"required"`
	Photos           []string           `json:"photos" validate:"max=10"`
}

// CreateParking lists a new parking for the logged in provider.
func (h *ParkingHandler) CreateParking(c echo.Context) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return domainerrors.ErrNotAuthenticated
	}

	var req CreateParkingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	parking, err := h.parkingUC.CreateParking(c.Request().Context(), account, &usecase.CreateParkingInput{
		Title:            req.Title,
		Description:      req.Description,
		Type:             req.Type,
		HourlyPriceCents: req.HourlyPriceCents,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		Address:          req.Address,
		Photos:           req.Photos,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, newParkingView(parking))
}

// StartReservation claims the parking for the logged in account.
func (h *ParkingHandler) StartReservation(c echo.Context) error {
	account, parkingID, err := accountAndResource(c)
	if err != nil {
		return err
	}

	occupation, err := h.reservationUC.StartReservation(c.Request().Context(), parkingID, account)
	metrics.ObserveReservation("start", err)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newOccupationView(occupation))
}

// EndReservation closes the reservation and returns the bill.
func (h *ParkingHandler) EndReservation(c echo.Context) error {
	account, parkingID, err := accountAndResource(c)
	if err != nil {
		return err
	}

	occupation, err := h.reservationUC.EndReservation(c.Request().Context(), parkingID, account)
	metrics.ObserveReservation("end", err)
	if err != nil {
		return err
	}
	if occupation.BillCents != nil {
		metrics.ObserveBill(*occupation.BillCents)
	}

	return response.Success(c, http.StatusOK, newOccupationView(occupation))
}

// ValidateParking approves a pending listing.
func (h *ParkingHandler) ValidateParking(c echo.Context) error {
	account, parkingID, err := accountAndResource(c)
	if err != nil {
		return err
	}

	parking, err := h.reservationUC.ValidateParking(c.Request().Context(), parkingID, account)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newParkingView(parking))
}

// ConfirmOccupancy records a device confirmation relayed by an admin client.
func (h *ParkingHandler) ConfirmOccupancy(c echo.Context) error {
	parkingID, err := resourceID(c)
	if err != nil {
		return err
	}

	occupation, err := h.reservationUC.ConfirmOccupancy(c.Request().Context(), parkingID)
	metrics.ObserveReservation("confirm", err)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newOccupationView(occupation))
}

// GetQRCode renders the check-in QR code of the parking.
func (h *ParkingHandler) GetQRCode(c echo.Context) error {
	account, parkingID, err := accountAndResource(c)
	if err != nil {
		return err
	}

	png, err := h.parkingUC.GetParkingQRCode(c.Request().Context(), parkingID, account)
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

func resourceID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("resourceId"))
	if err != nil {
		return uuid.Nil, domainerrors.ErrParkingNotFound
	}

	return id, nil
}

func accountAndResource(c echo.Context) (*entity.Account, uuid.UUID, error) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return nil, uuid.Nil, domainerrors.ErrNotAuthenticated
	}

	id, err := resourceID(c)
	if err != nil {
		return nil, uuid.Nil, err
	}

	return account, id, nil
}
