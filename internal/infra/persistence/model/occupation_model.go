package model

import (
	"time"

	"github.com/google/uuid"
)

// IndexOccupationsOpenParking allows a single open occupation per parking.
const IndexOccupationsOpenParking = "idx_occupations_open_parking"

// OccupationModel mirrors the 'occupations' table. EndedAt stays NULL while the occupation is open.
type OccupationModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ParkingID        uuid.UUID `gorm:"type:uuid;not null;index"`
	RenterID         uuid.UUID `gorm:"type:uuid;not null;index"`
	State            string    `gorm:"type:varchar(30);not null;index"`
	HourlyPriceCents int64     `gorm:"not null"`
	StartedAt        time.Time `gorm:"not null"`
	ConfirmedAt      *time.Time
	EndedAt          *time.Time
	BillCents        *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (OccupationModel) TableName() string {
	return "occupations"
}
