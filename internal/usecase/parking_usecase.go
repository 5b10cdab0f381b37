package usecase

import (
	"context"
	"io"

	"parkshare/internal/domain/entity"

	"github.com/google/uuid"
)

// CreateParkingInput defines a new listing.
type CreateParkingInput struct {
	Title            string
	Description      string
	Type             entity.ParkingType
	HourlyPriceCents int64
	Latitude         float64
	Longitude        float64
	Address          string
	Photos           []string
}

// ParkingUsecase manages listings owned by providers.
type ParkingUsecase interface {
	CreateParking(ctx context.Context, owner *entity.Account, input *CreateParkingInput) (*entity.Parking, error)
	// GetParkingQRCode returns the PNG check-in code of a parking to its owner.
	GetParkingQRCode(ctx context.Context, parkingID uuid.UUID, caller *entity.Account) ([]byte, error)
	// WriteEarningsReport writes the closed reservations of the owner's parkings as a spreadsheet.
	WriteEarningsReport(ctx context.Context, owner *entity.Account, w io.Writer) error
}
