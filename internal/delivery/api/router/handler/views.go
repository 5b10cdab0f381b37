package handler

import (
	"time"

	"parkshare/internal/domain/entity"
	"parkshare/internal/util"

	"github.com/google/uuid"
)

// AccountView is the public representation of an account. It never carries secrets.
type AccountView struct {
	ID            uuid.UUID   `json:"id"`
	Username      string      `json:"username"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone"`
	Role          entity.Role `json:"role"`
	EmailVerified bool        `json:"emailVerified"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func newAccountView(a *entity.Account) *AccountView {
	return &AccountView{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		Phone:         a.Phone,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}
}

// SessionView carries an issued session token.
type SessionView struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Account   *AccountView `json:"account"`
}

// LocationView is a parking position.
type LocationView struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// ParkingView is the public representation of a parking.
type ParkingView struct {
	ID               uuid.UUID             `json:"id"`
	OwnerID          uuid.UUID             `json:"ownerId"`
	Title            string                `json:"title"`
	Description      string                `json:"description,omitempty"`
	Type             entity.ParkingType    `json:"type"`
	HourlyPriceCents int64                 `json:"hourlyPriceCents"`
	Location         LocationView          `json:"location"`
	Photos           []string              `json:"photos,omitempty"`
	Status           entity.ParkingStatus  `json:"status"`
	Occupancy        entity.OccupancyState `json:"occupancy"`
	ValidatedAt      *time.Time            `json:"validatedAt,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
}

func newParkingView(p *entity.Parking) *ParkingView {
	return &ParkingView{
		ID:               p.ID,
		OwnerID:          p.OwnerID,
		Title:            p.Title,
		Description:      p.Description,
		Type:             p.Type,
		HourlyPriceCents: p.HourlyPriceCents,
		Location: LocationView{
			Latitude:  p.Location.Latitude(),
			Longitude: p.Location.Longitude(),
			Address:   p.Location.Address,
		},
		Photos:      p.Photos,
		Status:      p.Status,
		Occupancy:   p.Occupancy,
		ValidatedAt: p.ValidatedAt,
		CreatedAt:   p.CreatedAt,
	}
}

// OccupationView is the public representation of a reservation.
type OccupationView struct {
	ID               uuid.UUID              `json:"id"`
	ParkingID        uuid.UUID              `json:"parkingId"`
	RenterID         uuid.UUID              `json:"renterId"`
	State            entity.OccupationState `json:"state"`
	HourlyPriceCents int64                  `json:"hourlyPriceCents"`
	StartedAt        time.Time              `json:"startedAt"`
	ConfirmedAt      *time.Time             `json:"confirmedAt,omitempty"`
	EndedAt          *time.Time             `json:"endedAt,omitempty"`
	BillCents        *int64                 `json:"billCents,omitempty"`
	Bill             string                 `json:"bill,omitempty"`
}

func newOccupationView(o *entity.Occupation) *OccupationView {
	view := &OccupationView{
		ID:               o.ID,
		ParkingID:        o.ParkingID,
		RenterID:         o.RenterID,
		State:            o.State,
		HourlyPriceCents: o.HourlyPriceCents,
		StartedAt:        o.StartedAt,
		ConfirmedAt:      o.ConfirmedAt,
		EndedAt:          o.EndedAt,
		BillCents:        o.BillCents,
	}
	if o.BillCents != nil {
		view.Bill = util.FormatCents(*o.BillCents)
	}

	return view
}
