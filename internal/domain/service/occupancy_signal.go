package service

import (
	"context"

	"github.com/google/uuid"
)

// OccupancySignal carries device confirmations of a parking to the request waiting on it.
type OccupancySignal interface {
	// Subscribe returns a channel that receives the confirmed occupation id for the parking.
	// The returned cancel func releases the subscription.
	Subscribe(ctx context.Context, parkingID uuid.UUID) (<-chan uuid.UUID, func(), error)

	// Publish notifies subscribers of the parking, on any instance.
	Publish(ctx context.Context, parkingID, occupationID uuid.UUID) error
}
