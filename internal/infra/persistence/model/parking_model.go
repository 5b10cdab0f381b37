package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ParkingModel mirrors the 'parkings' table.
type ParkingModel struct {
	ID               uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID          uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Title            string                      `gorm:"type:varchar(120);not null"`
	Description      string                      `gorm:"type:text"`
	Type             string                      `gorm:"type:varchar(20);not null"`
	HourlyPriceCents int64                       `gorm:"not null;check:chk_parkings_price,hourly_price_cents >= 0"`
	Latitude         float64                     `gorm:"type:decimal(10,8);not null"`
	Longitude        float64                     `gorm:"type:decimal(11,8);not null"`
	Address          string                      `gorm:"type:text"`
	Photos           datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Status           string                      `gorm:"type:varchar(20);not null;default:pending"`
	Occupancy        string                      `gorm:"type:varchar(30);not null;default:free"`
	ValidatedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Occupations []OccupationModel `gorm:"foreignKey:ParkingID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (ParkingModel) TableName() string {
	return "parkings"
}
