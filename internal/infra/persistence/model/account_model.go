// Package model holds the GORM persistence models.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Unique index names. Constraint violations are mapped back to a field through them.
const (
	IndexAccountsUsername = "idx_accounts_username"
	IndexAccountsEmail    = "idx_accounts_email"
	IndexAccountsPhone    = "idx_accounts_phone"
)

// AccountModel mirrors the 'accounts' table. PostgreSQL generates UUIDs via gen_random_uuid().
type AccountModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_accounts_username"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_accounts_email"`
	Phone        string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_accounts_phone"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Role         string    `gorm:"type:varchar(20);not null;default:client"`

	Confirmed     bool `gorm:"not null;default:false;index:idx_accounts_unconfirmed"`
	EmailVerified bool `gorm:"not null;default:false"`

	// Secrets are stored as SHA-256 hex digests with an absolute expiry.
	PinHash                *string `gorm:"type:char(64);index"`
	PinExpiresAt           *time.Time
	PinAttempts            int     `gorm:"not null;default:0"`
	EmailConfirmHash       *string `gorm:"type:char(64);index"`
	EmailConfirmExpiresAt  *time.Time
	PasswordResetHash      *string `gorm:"type:char(64);index"`
	PasswordResetExpiresAt *time.Time
	PasswordChangedAt      *time.Time

	Active        bool       `gorm:"not null;default:true"`
	DeactivatedAt *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"index:idx_accounts_unconfirmed"`
	UpdatedAt time.Time

	Parkings    []ParkingModel    `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Occupations []OccupationModel `gorm:"foreignKey:RenterID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
