package service

import (
	"github.com/google/uuid"
)

// QRCodeService defines the interface for QR code generation and parsing services
type QRCodeService interface {
	// GenerateCheckInQR generates the check-in code printed on a parking for its device
	GenerateCheckInQR(parkingID uuid.UUID) ([]byte, error)

	// ParseCheckInQR parses QR code data and returns the parking ID
	ParseCheckInQR(qrData string) (uuid.UUID, error)
}
