package impl

import (
	"context"
	"io"
	"log/slog"
	"strings"

	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/domain/service"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const maxParkingPhotos = 10

// parkingService implements the ParkingUsecase interface.
type parkingService struct {
	parkingRepo    repository.ParkingRepository
	occupationRepo repository.OccupationRepository
	qrCodeService  service.QRCodeService
	reportService  service.ReportService
	logger         *slog.Logger
}

// ParkingServiceParams holds dependencies for ParkingService, injected by Fx.
type ParkingServiceParams struct {
	fx.In

	ParkingRepo    repository.ParkingRepository
	OccupationRepo repository.OccupationRepository
	QRCodeService  service.QRCodeService
	ReportService  service.ReportService
	Logger         *slog.Logger
}

// NewParkingService is the constructor for parkingService.
func NewParkingService(params ParkingServiceParams) usecase.ParkingUsecase {
	return &parkingService{
		parkingRepo:    params.ParkingRepo,
		occupationRepo: params.OccupationRepo,
		qrCodeService:  params.QRCodeService,
		reportService:  params.ReportService,
		logger:         params.Logger,
	}
}

func (srv *parkingService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateParking lists a new parking. It stays pending until an admin validates it.
func (srv *parkingService) CreateParking(ctx context.Context, owner *entity.Account, input *usecase.CreateParkingInput) (*entity.Parking, error) {
	if !owner.HasRole(entity.RoleProvider, entity.RoleAdmin) {
		return nil, domainerrors.ErrForbidden
	}

	location := entity.Location{
		Point:   orb.Point{input.Longitude, input.Latitude},
		Address: strings.TrimSpace(input.Address),
	}

	fields := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		fields["title"] = "is required"
	}
	if !input.Type.IsValid() {
		fields["type"] = "must be indoor or outdoor"
	}
	if input.HourlyPriceCents <= 0 {
		fields["hourlyPriceCents"] = "must be greater than zero"
	}
	if !location.IsValid() {
		fields["location"] = "coordinates are out of range"
	}
	if location.Address == "" {
		fields["address"] = "is required"
	}
	if len(input.Photos) > maxParkingPhotos {
		fields["photos"] = "too many photos"
	}
	if len(fields) > 0 {
		return nil, domainerrors.NewValidationError(fields)
	}

	parking := &entity.Parking{
		OwnerID:          owner.ID,
		Title:            strings.TrimSpace(input.Title),
		Description:      strings.TrimSpace(input.Description),
		Type:             input.Type,
		HourlyPriceCents: input.HourlyPriceCents,
		Location:         location,
		Photos:           input.Photos,
		Status:           entity.ParkingStatusPending,
		Occupancy:        entity.OccupancyFree,
	}
	if err := srv.parkingRepo.Create(ctx, parking); err != nil {
		return nil, errors.Wrap(err, "failed to create parking")
	}

	srv.log(ctx).Info("Parking created", slog.Any("parkingID", parking.ID), slog.Any("ownerID", owner.ID))

	return parking, nil
}

// GetParkingQRCode renders the check-in code of a parking for its owner or an admin.
func (srv *parkingService) GetParkingQRCode(ctx context.Context, parkingID uuid.UUID, caller *entity.Account) ([]byte, error) {
	parking, err := srv.parkingRepo.FindByID(ctx, parkingID)
	if errors.Is(err, repository.ErrParkingNotFound) {
		return nil, domainerrors.ErrParkingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find parking")
	}

	if !parking.IsOwnedBy(caller.ID) && !caller.HasRole(entity.RoleAdmin) {
		return nil, domainerrors.ErrForbidden
	}

	png, err := srv.qrCodeService.GenerateCheckInQR(parking.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate check-in code")
	}

	return png, nil
}

// WriteEarningsReport exports the closed reservations of every parking the owner lists.
func (srv *parkingService) WriteEarningsReport(ctx context.Context, owner *entity.Account, w io.Writer) error {
	if !owner.HasRole(entity.RoleProvider) {
		return domainerrors.ErrForbidden
	}

	parkings, err := srv.parkingRepo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return errors.Wrap(err, "failed to list parkings")
	}
	byID := make(map[uuid.UUID]*entity.Parking, len(parkings))
	for _, p := range parkings {
		byID[p.ID] = p
	}

	occupations, err := srv.occupationRepo.ListClosedByOwner(ctx, owner.ID)
	if err != nil {
		return errors.Wrap(err, "failed to list closed occupations")
	}

	rows := make([]service.EarningsRow, 0, len(occupations))
	for _, occ := range occupations {
		rows = append(rows, service.EarningsRow{Parking: byID[occ.ParkingID], Occupation: occ})
	}

	return srv.reportService.WriteEarnings(ctx, w, rows)
}
