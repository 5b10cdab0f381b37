package repository

import (
	"context"
	"time"

	"parkshare/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrOccupationNotFound is returned when no matching occupation exists.
var ErrOccupationNotFound = errors.New("occupation not found")

// OccupationRepository defines the interface for reservation data persistence.
type OccupationRepository interface {
	// Create persists a new open occupation. A second open occupation on the same parking
	// violates the open-occupation index and is reported as ErrStateConflict.
	Create(ctx context.Context, occupation *entity.Occupation) error

	// FindByID retrieves an occupation by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Occupation, error)

	// FindOpenByParking returns the open occupation of a parking.
	FindOpenByParking(ctx context.Context, parkingID uuid.UUID) (*entity.Occupation, error)

	// FindOpenByParkingAndRenter returns the open occupation of a parking held by the renter in the given state.
	FindOpenByParkingAndRenter(ctx context.Context, parkingID, renterID uuid.UUID, state entity.OccupationState) (*entity.Occupation, error)

	// ListOpenByRenter returns every open occupation held by the renter.
	ListOpenByRenter(ctx context.Context, renterID uuid.UUID) ([]*entity.Occupation, error)

	// Confirm moves a pending occupation to active. It returns ErrStateConflict when it is not pending.
	Confirm(ctx context.Context, id uuid.UUID, at time.Time) error

	// Close ends an open active occupation with its bill. It returns ErrStateConflict when it is already closed.
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time, billCents int64) error

	// Expire ends a pending occupation without a bill. It returns ErrStateConflict when it is not pending.
	Expire(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListPendingBefore returns IDs of pending occupations started before the cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)

	// ListClosedByOwner returns the closed occupations of all parkings of an owner, newest first.
	ListClosedByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Occupation, error)
}
