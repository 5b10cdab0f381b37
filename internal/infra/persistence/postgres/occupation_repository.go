package postgres

import (
	"context"
	"time"

	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// occupationRepository implements the repository.OccupationRepository interface using GORM.
type occupationRepository struct {
	db *gorm.DB
}

// NewOccupationRepository is the constructor for occupationRepository.
func NewOccupationRepository(db *gorm.DB) repository.OccupationRepository {
	return &occupationRepository{db: db}
}

// Create persists a new open occupation.
func (repo *occupationRepository) Create(ctx context.Context, occupation *entity.Occupation) error {
	occupationM := fromOccupationDomain(occupation)

	if err := repo.db.WithContext(ctx).Create(occupationM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrStateConflict
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrNotFound.WrapMessage("occupation references a missing parking or renter")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create occupation")
	}

	occupation.ID = occupationM.ID
	occupation.CreatedAt = occupationM.CreatedAt
	occupation.UpdatedAt = occupationM.UpdatedAt

	return nil
}

// FindByID retrieves an occupation by its ID.
func (repo *occupationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Occupation, error) {
	return repo.findOne(ctx, "id = ?", id)
}

// FindOpenByParking returns the open occupation of a parking.
func (repo *occupationRepository) FindOpenByParking(ctx context.Context, parkingID uuid.UUID) (*entity.Occupation, error) {
	return repo.findOne(ctx, "parking_id = ? AND ended_at IS NULL", parkingID)
}

// FindOpenByParkingAndRenter returns the renter's open occupation of a parking in the given state.
func (repo *occupationRepository) FindOpenByParkingAndRenter(ctx context.Context, parkingID, renterID uuid.UUID, state entity.OccupationState) (*entity.Occupation, error) {
	return repo.findOne(ctx, "parking_id = ? AND renter_id = ? AND state = ? AND ended_at IS NULL", parkingID, renterID, string(state))
}

// ListOpenByRenter returns the renter's pending and active occupations.
func (repo *occupationRepository) ListOpenByRenter(ctx context.Context, renterID uuid.UUID) ([]*entity.Occupation, error) {
	var rows []model.OccupationModel
	err := repo.db.WithContext(ctx).
		Where("renter_id = ? AND ended_at IS NULL", renterID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open occupations")
	}

	occupations := make([]*entity.Occupation, 0, len(rows))
	for i := range rows {
		occupations = append(occupations, toOccupationDomain(&rows[i]))
	}

	return occupations, nil
}

func (repo *occupationRepository) findOne(ctx context.Context, query string, args ...any) (*entity.Occupation, error) {
	var occupationM model.OccupationModel
	if err := repo.db.WithContext(ctx).Where(query, args...).Take(&occupationM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrOccupationNotFound
		}

		return nil, errors.Wrap(err, "failed to find occupation")
	}

	return toOccupationDomain(&occupationM), nil
}

// Confirm moves a pending occupation to active.
func (repo *occupationRepository) Confirm(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.transition(ctx, id, entity.OccupationPendingConfirmation, map[string]any{
		"state":        string(entity.OccupationActive),
		"confirmed_at": at,
	}, "failed to confirm occupation")
}

// Close ends an active occupation and records its bill.
func (repo *occupationRepository) Close(ctx context.Context, id uuid.UUID, endedAt time.Time, billCents int64) error {
	return repo.transition(ctx, id, entity.OccupationActive, map[string]any{
		"state":      string(entity.OccupationClosed),
		"ended_at":   endedAt,
		"bill_cents": billCents,
	}, "failed to close occupation")
}

// Expire ends a pending occupation without a bill.
func (repo *occupationRepository) Expire(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.transition(ctx, id, entity.OccupationPendingConfirmation, map[string]any{
		"state":    string(entity.OccupationExpired),
		"ended_at": at,
	}, "failed to expire occupation")
}

func (repo *occupationRepository) transition(ctx context.Context, id uuid.UUID, from entity.OccupationState, updates map[string]any, msg string) error {
	result := repo.db.WithContext(ctx).Model(&model.OccupationModel{}).
		Where("id = ? AND state = ? AND ended_at IS NULL", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected == 0 {
		return repository.ErrStateConflict
	}

	return nil
}

// ListPendingBefore returns pending occupations started before the cutoff.
func (repo *occupationRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := repo.db.WithContext(ctx).Model(&model.OccupationModel{}).
		Where("state = ? AND ended_at IS NULL AND started_at < ?", string(entity.OccupationPendingConfirmation), cutoff).
		Order("started_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending occupations")
	}

	return ids, nil
}

// ListClosedByOwner returns the closed occupations on the owner's parkings, newest first.
func (repo *occupationRepository) ListClosedByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Occupation, error) {
	var rows []model.OccupationModel
	err := repo.db.WithContext(ctx).
		Joins("JOIN parkings ON parkings.id = occupations.parking_id").
		Where("parkings.owner_id = ? AND occupations.state = ?", ownerID, string(entity.OccupationClosed)).
		Order("occupations.ended_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list closed occupations")
	}

	occupations := make([]*entity.Occupation, 0, len(rows))
	for i := range rows {
		occupations = append(occupations, toOccupationDomain(&rows[i]))
	}

	return occupations, nil
}

// --- Mapper Functions ---

func toOccupationDomain(data *model.OccupationModel) *entity.Occupation {
	if data == nil {
		return nil
	}

	return &entity.Occupation{
		ID:               data.ID,
		ParkingID:        data.ParkingID,
		RenterID:         data.RenterID,
		State:            entity.OccupationState(data.State),
		HourlyPriceCents: data.HourlyPriceCents,
		StartedAt:        data.StartedAt,
		ConfirmedAt:      data.ConfirmedAt,
		EndedAt:          data.EndedAt,
		BillCents:        data.BillCents,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
}

func fromOccupationDomain(data *entity.Occupation) *model.OccupationModel {
	if data == nil {
		return nil
	}

	return &model.OccupationModel{
		ID:               data.ID,
		ParkingID:        data.ParkingID,
		RenterID:         data.RenterID,
		State:            string(data.State),
		HourlyPriceCents: data.HourlyPriceCents,
		StartedAt:        data.StartedAt,
		ConfirmedAt:      data.ConfirmedAt,
		EndedAt:          data.EndedAt,
		BillCents:        data.BillCents,
	}
}
