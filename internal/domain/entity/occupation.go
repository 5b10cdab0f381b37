package entity

import (
	"time"

	"github.com/google/uuid"
)

// OccupationState is the lifecycle state of a reservation.
type OccupationState string

const (
	OccupationPendingConfirmation OccupationState = "pending_confirmation"
	OccupationActive              OccupationState = "active"
	OccupationClosed              OccupationState = "closed"
	OccupationExpired             OccupationState = "expired"
)

const millisPerHour = int64(time.Hour / time.Millisecond)

// Occupation is one exclusive, time-bounded claim on a parking by a renter.
type Occupation struct {
	ID               uuid.UUID
	ParkingID        uuid.UUID
	RenterID         uuid.UUID
	State            OccupationState
	HourlyPriceCents int64 // snapshot of the parking price at start
	StartedAt        time.Time
	ConfirmedAt      *time.Time
	EndedAt          *time.Time
	BillCents        *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsOpen reports whether the occupation still holds the parking.
func (o *Occupation) IsOpen() bool {
	return o.EndedAt == nil
}

// ComputeBill returns the price of the elapsed time in cents, rounded half up to the cent.
func ComputeBill(startedAt, endedAt time.Time, hourlyPriceCents int64) int64 {
	elapsed := endedAt.Sub(startedAt).Milliseconds()
	if elapsed <= 0 || hourlyPriceCents <= 0 {
		return 0
	}

	return (elapsed*hourlyPriceCents + millisPerHour/2) / millisPerHour
}

// Close ends the occupation at endedAt and stores the bill.
func (o *Occupation) Close(endedAt time.Time) {
	bill := ComputeBill(o.StartedAt, endedAt, o.HourlyPriceCents)
	o.EndedAt = &endedAt
	o.BillCents = &bill
	o.State = OccupationClosed
}
