package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// ParkingType describes whether a spot is covered.
type ParkingType string

const (
	ParkingTypeIndoor  ParkingType = "indoor"
	ParkingTypeOutdoor ParkingType = "outdoor"
)

// IsValid checks if the ParkingType is a valid value.
func (t ParkingType) IsValid() bool {
	return t == ParkingTypeIndoor || t == ParkingTypeOutdoor
}

// ParkingStatus is the moderation status of a listing.
type ParkingStatus string

const (
	ParkingStatusPending   ParkingStatus = "pending"
	ParkingStatusValidated ParkingStatus = "validated"
)

// OccupancyState is the reservation state of a parking.
type OccupancyState string

const (
	OccupancyFree                OccupancyState = "free"
	OccupancyPendingConfirmation OccupancyState = "pending_confirmation"
	OccupancyOccupied            OccupancyState = "occupied"
)

// Location is a geolocated address. Point holds longitude then latitude.
type Location struct {
	Point   orb.Point
	Address string
}

// Longitude returns the X coordinate.
func (l Location) Longitude() float64 { return l.Point.Lon() }

// Latitude returns the Y coordinate.
func (l Location) Latitude() float64 { return l.Point.Lat() }

// worldBound is the valid WGS84 range.
var worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// IsValid reports whether the point lies within WGS84 bounds.
func (l Location) IsValid() bool {
	return worldBound.Contains(l.Point)
}

// Parking is a rentable parking spot listed by a provider.
type Parking struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	Title            string
	Description      string
	Type             ParkingType
	HourlyPriceCents int64
	Location         Location
	Photos           []string
	Status           ParkingStatus
	Occupancy        OccupancyState
	ValidatedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsValidated reports whether an admin approved the listing.
func (p *Parking) IsValidated() bool {
	return p.Status == ParkingStatusValidated
}

// IsOwnedBy reports whether the account owns the listing.
func (p *Parking) IsOwnedBy(accountID uuid.UUID) bool {
	return p.OwnerID == accountID
}

// IsFree reports whether the parking can be reserved right now.
func (p *Parking) IsFree() bool {
	return p.Occupancy == OccupancyFree
}
