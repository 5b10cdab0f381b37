package qrcode

import (
	"encoding/json"
	"strings"

	"parkshare/config"
	"parkshare/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const checkInType = "parking_check_in"

type qrcodeService struct {
	size  int
	level qrcode.RecoveryLevel
}

// CheckInPayload is the JSON encoded in a parking's check-in code.
// A renter's device scans it to confirm presence at the spot.
type CheckInPayload struct {
	Type      string `json:"type"`
	ParkingID string `json:"parking_id"`
}

// NewQRCodeService creates the check-in code generator from configuration.
func NewQRCodeService(cfg *config.Config) service.QRCodeService {
	size, level := 256, "M"
	if cfg.QRCode != nil {
		if cfg.QRCode.Size > 0 {
			size = cfg.QRCode.Size
		}
		level = cfg.QRCode.ErrorCorrectionLevel
	}

	return &qrcodeService{size: size, level: recoveryLevel(level)}
}

func recoveryLevel(name string) qrcode.RecoveryLevel {
	switch strings.ToUpper(name) {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// GenerateCheckInQR renders the check-in code of a parking as PNG.
func (s *qrcodeService) GenerateCheckInQR(parkingID uuid.UUID) ([]byte, error) {
	payload, err := json.Marshal(CheckInPayload{Type: checkInType, ParkingID: parkingID.String()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal check-in payload")
	}

	code, err := qrcode.New(string(payload), s.level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create QR code")
	}

	png, err := code.PNG(s.size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render PNG")
	}

	return png, nil
}

// ParseCheckInQR returns the parking id carried by a scanned check-in payload.
func (s *qrcodeService) ParseCheckInQR(qrData string) (uuid.UUID, error) {
	var payload CheckInPayload
	if err := json.Unmarshal([]byte(qrData), &payload); err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to unmarshal check-in payload")
	}

	if payload.Type != checkInType {
		return uuid.Nil, errors.Errorf("invalid QR code type: %s", payload.Type)
	}

	parkingID, err := uuid.Parse(payload.ParkingID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to parse parking id")
	}

	return parkingID, nil
}
