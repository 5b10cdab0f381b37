package repository

import (
	"context"
	"time"

	"parkshare/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrParkingNotFound is returned when a parking cannot be found.
var ErrParkingNotFound = errors.New("parking not found")

// ParkingRepository defines the interface for parking data persistence.
type ParkingRepository interface {
	// Create persists a new parking and fills its generated ID and timestamps.
	Create(ctx context.Context, parking *entity.Parking) error

	// FindByID retrieves a parking by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Parking, error)

	// ListByOwner returns the parkings of an owner.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Parking, error)

	// TransitionOccupancy moves the occupancy from one state to another in a single conditional write.
	// It returns ErrStateConflict when the parking is not validated or not in the from state.
	TransitionOccupancy(ctx context.Context, id uuid.UUID, from, to entity.OccupancyState) error

	// MarkValidated moves a pending parking to validated. It returns ErrStateConflict if already validated.
	MarkValidated(ctx context.Context, id uuid.UUID, at time.Time) error
}
