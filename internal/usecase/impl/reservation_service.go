package impl

import (
	"context"
	"log/slog"
	"time"

	"parkshare/config"
	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/domain/service"
	"parkshare/internal/usecase"
	"parkshare/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultDeviceTimeout = 2 * time.Minute

// reservationService implements the ReservationUsecase interface.
type reservationService struct {
	txManager      repository.TransactionManager
	accountRepo    repository.AccountRepository
	parkingRepo    repository.ParkingRepository
	occupationRepo repository.OccupationRepository
	scheduler      service.Scheduler
	signal         service.OccupancySignal
	notifier       service.Notifier
	deviceMode     bool
	deviceTimeout  time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// ReservationServiceParams holds dependencies for ReservationService, injected by Fx.
type ReservationServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	AccountRepo    repository.AccountRepository
	ParkingRepo    repository.ParkingRepository
	OccupationRepo repository.OccupationRepository
	Scheduler      service.Scheduler
	Signal         service.OccupancySignal
	Notifier       service.Notifier
	Config         *config.Config
	Logger         *slog.Logger
}

// NewReservationService is the constructor for reservationService.
func NewReservationService(params ReservationServiceParams) usecase.ReservationUsecase {
	srv := &reservationService{
		txManager:      params.TxManager,
		accountRepo:    params.AccountRepo,
		parkingRepo:    params.ParkingRepo,
		occupationRepo: params.OccupationRepo,
		scheduler:      params.Scheduler,
		signal:         params.Signal,
		notifier:       params.Notifier,
		deviceTimeout:  defaultDeviceTimeout,
		now:            time.Now,
		logger:         params.Logger,
	}

	if cfg := params.Config.Reservation; cfg != nil {
		srv.deviceMode = cfg.DeviceConfirmation.Enabled
		if cfg.DeviceConfirmation.Timeout > 0 {
			srv.deviceTimeout = cfg.DeviceConfirmation.Timeout
		}
	}

	return srv
}

func (srv *reservationService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// findParking maps a missing parking to its domain error.
func (srv *reservationService) findParking(ctx context.Context, parkingID uuid.UUID) (*entity.Parking, error) {
	parking, err := srv.parkingRepo.FindByID(ctx, parkingID)
	if errors.Is(err, repository.ErrParkingNotFound) {
		return nil, domainerrors.ErrParkingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find parking")
	}

	return parking, nil
}

// StartReservation claims a free parking for the renter. Without device confirmation the
// parking is occupied at once. With it, the call waits for the device signal and frees
// the parking again when none arrives in time.
func (srv *reservationService) StartReservation(ctx context.Context, parkingID uuid.UUID, renter *entity.Account) (*entity.Occupation, error) {
	parking, err := srv.findParking(ctx, parkingID)
	if err != nil {
		return nil, err
	}
	if !parking.IsValidated() {
		return nil, domainerrors.ErrParkingNotFound
	}
	if parking.IsOwnedBy(renter.ID) {
		return nil, domainerrors.ErrSelfReservation
	}

	if !srv.deviceMode {
		occupation, err := srv.claim(ctx, parking, renter, entity.OccupancyOccupied, entity.OccupationActive)
		if err != nil {
			return nil, err
		}
		srv.notifyOwner(ctx, parking, entity.TemplateReservationStarted, map[string]string{
			"started_at": occupation.StartedAt.UTC().Format(time.RFC3339),
		})

		return occupation, nil
	}

	// subscribe before the claim commits so an early device signal is not lost
	confirmations, unsubscribe, err := srv.signal.Subscribe(ctx, parking.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to occupancy signal")
	}
	defer unsubscribe()

	occupation, err := srv.claim(ctx, parking, renter, entity.OccupancyPendingConfirmation, entity.OccupationPendingConfirmation)
	if err != nil {
		return nil, err
	}

	job := entity.Job{
		Key:      entity.OccupationConfirmationKey(occupation.ID),
		Kind:     entity.JobOccupationConfirmationTimeout,
		EntityID: occupation.ID,
		RunAt:    occupation.StartedAt.Add(srv.deviceTimeout),
	}
	if err := srv.scheduler.Schedule(ctx, job); err != nil {
		srv.log(ctx).Warn("Failed to schedule confirmation timeout", slog.Any("occupationID", occupation.ID), slog.Any("error", err))
	}

	return srv.awaitConfirmation(ctx, occupation, confirmations)
}

func (srv *reservationService) awaitConfirmation(ctx context.Context, occupation *entity.Occupation, confirmations <-chan uuid.UUID) (*entity.Occupation, error) {
	timer := time.NewTimer(srv.deviceTimeout)
	defer timer.Stop()

	for {
		select {
		case id, ok := <-confirmations:
			if !ok {
				confirmations = nil

				continue
			}
			if id != occupation.ID {
				continue
			}

			return srv.reload(ctx, occupation.ID)

		case <-timer.C:
			expired, err := srv.ExpirePendingOccupation(ctx, occupation.ID)
			if err != nil {
				return nil, err
			}
			if !expired {
				// confirmed between the deadline and the revert
				return srv.reload(ctx, occupation.ID)
			}
			if err := srv.scheduler.Cancel(ctx, entity.OccupationConfirmationKey(occupation.ID)); err != nil {
				srv.log(ctx).Warn("Failed to cancel confirmation timeout", slog.Any("error", err))
			}

			return nil, domainerrors.ErrConfirmationTimeout

		case <-ctx.Done():
			// the scheduled timeout reverts the claim
			return nil, errors.Wrap(ctx.Err(), "waiting for device confirmation")
		}
	}
}

func (srv *reservationService) reload(ctx context.Context, occupationID uuid.UUID) (*entity.Occupation, error) {
	occupation, err := srv.occupationRepo.FindByID(ctx, occupationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload occupation")
	}

	return occupation, nil
}

// claim flips the parking out of free and records the open occupation in one transaction.
func (srv *reservationService) claim(
	ctx context.Context,
	parking *entity.Parking,
	renter *entity.Account,
	occupancy entity.OccupancyState,
	state entity.OccupationState,
) (*entity.Occupation, error) {
	now := srv.now()
	occupation := &entity.Occupation{
		ParkingID:        parking.ID,
		RenterID:         renter.ID,
		State:            state,
		HourlyPriceCents: parking.HourlyPriceCents,
		StartedAt:        now,
	}
	if state == entity.OccupationActive {
		occupation.ConfirmedAt = &now
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		err := repoFactory.NewParkingRepository().TransitionOccupancy(ctx, parking.ID, entity.OccupancyFree, occupancy)
		if errors.Is(err, repository.ErrStateConflict) {
			return domainerrors.ErrAlreadyOccupied
		}
		if err != nil {
			return errors.Wrap(err, "failed to claim parking")
		}

		err = repoFactory.NewOccupationRepository().Create(ctx, occupation)
		if errors.Is(err, repository.ErrStateConflict) {
			return domainerrors.ErrAlreadyOccupied
		}

		return errors.Wrap(err, "failed to create occupation")
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Reservation started",
		slog.Any("parkingID", parking.ID),
		slog.Any("occupationID", occupation.ID),
		slog.String("state", string(state)),
	)

	return occupation, nil
}

// ConfirmOccupancy activates the pending reservation of a parking.
func (srv *reservationService) ConfirmOccupancy(ctx context.Context, parkingID uuid.UUID) (*entity.Occupation, error) {
	var occupation *entity.Occupation
	now := srv.now()

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		occupations := repoFactory.NewOccupationRepository()

		open, err := occupations.FindOpenByParking(ctx, parkingID)
		if errors.Is(err, repository.ErrOccupationNotFound) {
			return domainerrors.ErrNoPendingReservation
		}
		if err != nil {
			return errors.Wrap(err, "failed to find open occupation")
		}
		if open.State != entity.OccupationPendingConfirmation {
			return domainerrors.ErrNoPendingReservation
		}

		if err := occupations.Confirm(ctx, open.ID, now); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return domainerrors.ErrNoPendingReservation
			}

			return errors.Wrap(err, "failed to confirm occupation")
		}

		err = repoFactory.NewParkingRepository().TransitionOccupancy(ctx, parkingID, entity.OccupancyPendingConfirmation, entity.OccupancyOccupied)
		if errors.Is(err, repository.ErrStateConflict) {
			return domainerrors.ErrNoPendingReservation
		}
		if err != nil {
			return errors.Wrap(err, "failed to occupy parking")
		}

		open.State = entity.OccupationActive
		open.ConfirmedAt = &now
		occupation = open

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := srv.scheduler.Cancel(ctx, entity.OccupationConfirmationKey(occupation.ID)); err != nil {
		srv.log(ctx).Warn("Failed to cancel confirmation timeout", slog.Any("occupationID", occupation.ID), slog.Any("error", err))
	}
	if err := srv.signal.Publish(ctx, parkingID, occupation.ID); err != nil {
		srv.log(ctx).Warn("Failed to publish occupancy signal", slog.Any("parkingID", parkingID), slog.Any("error", err))
	}

	if parking, err := srv.parkingRepo.FindByID(ctx, parkingID); err == nil {
		srv.notifyOwner(ctx, parking, entity.TemplateReservationStarted, map[string]string{
			"started_at": occupation.StartedAt.UTC().Format(time.RFC3339),
		})
	}

	srv.log(ctx).Info("Occupancy confirmed", slog.Any("parkingID", parkingID), slog.Any("occupationID", occupation.ID))

	return occupation, nil
}

// EndReservation closes the renter's active reservation and bills the elapsed time.
func (srv *reservationService) EndReservation(ctx context.Context, parkingID uuid.UUID, renter *entity.Account) (*entity.Occupation, error) {
	parking, err := srv.findParking(ctx, parkingID)
	if err != nil {
		return nil, err
	}

	var occupation *entity.Occupation
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		occupations := repoFactory.NewOccupationRepository()

		open, err := occupations.FindOpenByParkingAndRenter(ctx, parkingID, renter.ID, entity.OccupationActive)
		if errors.Is(err, repository.ErrOccupationNotFound) {
			return domainerrors.ErrNoActiveReservation
		}
		if err != nil {
			return errors.Wrap(err, "failed to find active occupation")
		}

		open.Close(srv.now())
		if err := occupations.Close(ctx, open.ID, *open.EndedAt, *open.BillCents); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return domainerrors.ErrNoActiveReservation
			}

			return errors.Wrap(err, "failed to close occupation")
		}

		err = repoFactory.NewParkingRepository().TransitionOccupancy(ctx, parkingID, entity.OccupancyOccupied, entity.OccupancyFree)
		if err != nil {
			return errors.Wrap(err, "failed to free parking")
		}
		occupation = open

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Reservation ended",
		slog.Any("parkingID", parkingID),
		slog.Any("occupationID", occupation.ID),
		slog.Int64("billCents", *occupation.BillCents),
	)

	srv.notifyOwner(ctx, parking, entity.TemplateReservationEnded, map[string]string{
		"ended_at": occupation.EndedAt.UTC().Format(time.RFC3339),
		"amount":   util.FormatCents(*occupation.BillCents),
		"duration": util.FormatDuration(occupation.EndedAt.Sub(occupation.StartedAt)),
	})

	return occupation, nil
}

// ValidateParking approves a pending listing.
func (srv *reservationService) ValidateParking(ctx context.Context, parkingID uuid.UUID, admin *entity.Account) (*entity.Parking, error) {
	if !admin.HasRole(entity.RoleAdmin) {
		return nil, domainerrors.ErrForbidden
	}

	parking, err := srv.findParking(ctx, parkingID)
	if err != nil {
		return nil, err
	}
	if parking.IsValidated() {
		return nil, domainerrors.ErrAlreadyValidated
	}

	now := srv.now()
	err = srv.parkingRepo.MarkValidated(ctx, parkingID, now)
	if errors.Is(err, repository.ErrStateConflict) {
		return nil, domainerrors.ErrAlreadyValidated
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate parking")
	}

	parking.Status = entity.ParkingStatusValidated
	parking.ValidatedAt = &now

	srv.log(ctx).Info("Parking validated", slog.Any("parkingID", parkingID), slog.Any("adminID", admin.ID))

	return parking, nil
}

// ExpirePendingOccupation expires a reservation still awaiting its device and frees the parking.
func (srv *reservationService) ExpirePendingOccupation(ctx context.Context, occupationID uuid.UUID) (bool, error) {
	expired := false

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		occupations := repoFactory.NewOccupationRepository()

		occupation, err := occupations.FindByID(ctx, occupationID)
		if errors.Is(err, repository.ErrOccupationNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to find occupation")
		}
		if occupation.State != entity.OccupationPendingConfirmation {
			return nil
		}

		err = occupations.Expire(ctx, occupationID, srv.now())
		if errors.Is(err, repository.ErrStateConflict) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to expire occupation")
		}

		err = repoFactory.NewParkingRepository().TransitionOccupancy(ctx, occupation.ParkingID, entity.OccupancyPendingConfirmation, entity.OccupancyFree)
		if err != nil && !errors.Is(err, repository.ErrStateConflict) {
			return errors.Wrap(err, "failed to free parking")
		}
		expired = true

		return nil
	})
	if err != nil {
		return false, err
	}

	if expired {
		srv.log(ctx).Info("Pending reservation expired", slog.Any("occupationID", occupationID))
	}

	return expired, nil
}

// notifyOwner emails the parking owner. Failures are only logged.
func (srv *reservationService) notifyOwner(ctx context.Context, parking *entity.Parking, template entity.NotificationTemplate, params map[string]string) {
	owner, err := srv.accountRepo.FindByID(ctx, parking.OwnerID)
	if err != nil {
		srv.log(ctx).Warn("Failed to load parking owner", slog.Any("parkingID", parking.ID), slog.Any("error", err))

		return
	}

	params["parking"] = parking.Title
	notification := &entity.Notification{
		Channel:   entity.ChannelEmail,
		Recipient: owner.Email,
		Template:  template,
		Params:    params,
	}
	if err := srv.notifier.Send(ctx, notification); err != nil {
		srv.log(ctx).Warn("Failed to notify parking owner", slog.Any("parkingID", parking.ID), slog.Any("error", err))
	}
}
