package postgres

import (
	"context"
	"time"

	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// parkingRepository implements the repository.ParkingRepository interface using GORM.
type parkingRepository struct {
	db *gorm.DB
}

// NewParkingRepository is the constructor for parkingRepository.
func NewParkingRepository(db *gorm.DB) repository.ParkingRepository {
	return &parkingRepository{db: db}
}

// Create persists a new parking.
func (repo *parkingRepository) Create(ctx context.Context, parking *entity.Parking) error {
	parkingM := fromParkingDomain(parking)

	if err := repo.db.WithContext(ctx).Omit(clause.Associations).Create(parkingM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrAccountNotFound.WrapMessage("parking owner does not exist")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create parking")
	}

	parking.ID = parkingM.ID
	parking.Status = entity.ParkingStatus(parkingM.Status)
	parking.Occupancy = entity.OccupancyState(parkingM.Occupancy)
	parking.CreatedAt = parkingM.CreatedAt
	parking.UpdatedAt = parkingM.UpdatedAt

	return nil
}

// FindByID retrieves a parking by its ID.
func (repo *parkingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Parking, error) {
	var parkingM model.ParkingModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).Take(&parkingM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrParkingNotFound
		}

		return nil, errors.Wrap(err, "failed to find parking by id")
	}

	return toParkingDomain(&parkingM), nil
}

// ListByOwner returns the parkings of an owner ordered by creation.
func (repo *parkingRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Parking, error) {
	var rows []model.ParkingModel
	if err := repo.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list parkings by owner")
	}

	parkings := make([]*entity.Parking, 0, len(rows))
	for i := range rows {
		parkings = append(parkings, toParkingDomain(&rows[i]))
	}

	return parkings, nil
}

// TransitionOccupancy performs a compare-and-set on the occupancy column of a validated parking.
func (repo *parkingRepository) TransitionOccupancy(ctx context.Context, id uuid.UUID, from, to entity.OccupancyState) error {
	result := repo.db.WithContext(ctx).Model(&model.ParkingModel{}).
		Where("id = ? AND occupancy = ? AND status = ?", id, string(from), string(entity.ParkingStatusValidated)).
		Update("occupancy", string(to))
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update occupancy")
	}
	if result.RowsAffected == 0 {
		return repository.ErrStateConflict
	}

	return nil
}

// MarkValidated moves a pending parking to validated.
func (repo *parkingRepository) MarkValidated(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := repo.db.WithContext(ctx).Model(&model.ParkingModel{}).
		Where("id = ? AND status = ?", id, string(entity.ParkingStatusPending)).
		Updates(map[string]any{"status": string(entity.ParkingStatusValidated), "validated_at": at})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to validate parking")
	}
	if result.RowsAffected == 0 {
		return repository.ErrStateConflict
	}

	return nil
}

// --- Mapper Functions ---

func toParkingDomain(data *model.ParkingModel) *entity.Parking {
	if data == nil {
		return nil
	}

	return &entity.Parking{
		ID:               data.ID,
		OwnerID:          data.OwnerID,
		Title:            data.Title,
		Description:      data.Description,
		Type:             entity.ParkingType(data.Type),
		HourlyPriceCents: data.HourlyPriceCents,
		Location: entity.Location{
			Point:   orb.Point{data.Longitude, data.Latitude},
			Address: data.Address,
		},
		Photos:      []string(data.Photos),
		Status:      entity.ParkingStatus(data.Status),
		Occupancy:   entity.OccupancyState(data.Occupancy),
		ValidatedAt: data.ValidatedAt,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
}

func fromParkingDomain(data *entity.Parking) *model.ParkingModel {
	if data == nil {
		return nil
	}

	status := data.Status
	if status == "" {
		status = entity.ParkingStatusPending
	}
	occupancy := data.Occupancy
	if occupancy == "" {
		occupancy = entity.OccupancyFree
	}

	return &model.ParkingModel{
		ID:               data.ID,
		OwnerID:          data.OwnerID,
		Title:            data.Title,
		Description:      data.Description,
		Type:             string(data.Type),
		HourlyPriceCents: data.HourlyPriceCents,
		Latitude:         data.Location.Latitude(),
		Longitude:        data.Location.Longitude(),
		Address:          data.Location.Address,
		Photos:           data.Photos,
		Status:           string(status),
		Occupancy:        string(occupancy),
		ValidatedAt:      data.ValidatedAt,
	}
}
