package usecase

import (
	"context"

	"parkshare/internal/domain/entity"

	"github.com/google/uuid"
)

// ReservationUsecase drives the occupancy state machine of parkings.
type ReservationUsecase interface {
	StartReservation(ctx context.Context, parkingID uuid.UUID, renter *entity.Account) (*entity.Occupation, error)
	// ConfirmOccupancy records the device signal that the renter is on the spot.
	ConfirmOccupancy(ctx context.Context, parkingID uuid.UUID) (*entity.Occupation, error)
	EndReservation(ctx context.Context, parkingID uuid.UUID, renter *entity.Account) (*entity.Occupation, error)
	ValidateParking(ctx context.Context, parkingID uuid.UUID, admin *entity.Account) (*entity.Parking, error)
	// ExpirePendingOccupation frees a parking whose device never confirmed.
	// It reports whether the occupation was still pending.
	ExpirePendingOccupation(ctx context.Context, occupationID uuid.UUID) (bool, error)
}
