package impl

import (
	"context"
	"log/slog"
	"time"

	"parkshare/config"
	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/repository"
	"parkshare/internal/errors"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const defaultSweepBatch = 100

// expiryService implements the ExpiryUsecase interface.
type expiryService struct {
	txManager      repository.TransactionManager
	accountRepo    repository.AccountRepository
	occupationRepo repository.OccupationRepository
	reservations   usecase.ReservationUsecase
	confirmDelay   time.Duration
	purgeDelay     time.Duration
	deviceTimeout  time.Duration
	batchSize      int
	now            func() time.Time
	logger         *slog.Logger
}

// ExpiryServiceParams holds dependencies for ExpiryService, injected by Fx.
type ExpiryServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	AccountRepo    repository.AccountRepository
	OccupationRepo repository.OccupationRepository
	Reservations   usecase.ReservationUsecase
	Config         *config.Config
	Logger         *slog.Logger
}

// NewExpiryService is the constructor for expiryService.
func NewExpiryService(params ExpiryServiceParams) usecase.ExpiryUsecase {
	srv := &expiryService{
		txManager:      params.TxManager,
		accountRepo:    params.AccountRepo,
		occupationRepo: params.OccupationRepo,
		reservations:   params.Reservations,
		confirmDelay:   defaultConfirmDelay,
		purgeDelay:     defaultPurgeDelay,
		deviceTimeout:  defaultDeviceTimeout,
		batchSize:      defaultSweepBatch,
		now:            time.Now,
		logger:         params.Logger,
	}

	cfg := params.Config
	if cfg.Account != nil {
		if cfg.Account.ConfirmationDelay > 0 {
			srv.confirmDelay = cfg.Account.ConfirmationDelay
		}
		if cfg.Account.PurgeDelay > 0 {
			srv.purgeDelay = cfg.Account.PurgeDelay
		}
	}
	if cfg.Reservation != nil && cfg.Reservation.DeviceConfirmation.Timeout > 0 {
		srv.deviceTimeout = cfg.Reservation.DeviceConfirmation.Timeout
	}
	if cfg.Scheduler != nil && cfg.Scheduler.BatchSize > 0 {
		srv.batchSize = cfg.Scheduler.BatchSize
	}

	return srv
}

func (srv *expiryService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ExpireUnconfirmedAccount deletes the account and its relations if it never confirmed.
func (srv *expiryService) ExpireUnconfirmedAccount(ctx context.Context, accountID uuid.UUID) (bool, error) {
	deleted, err := srv.remove(ctx, accountID, deleteIfUnconfirmed)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete unconfirmed account")
	}
	if deleted {
		srv.log(ctx).Info("Unconfirmed account deleted", slog.Any("accountID", accountID))
	}

	return deleted, nil
}

// PurgeInactiveAccount deletes the account if it was not reactivated.
func (srv *expiryService) PurgeInactiveAccount(ctx context.Context, accountID uuid.UUID) (bool, error) {
	deleted, err := srv.remove(ctx, accountID, deleteIfInactive)
	if err != nil {
		return false, errors.Wrap(err, "failed to purge account")
	}
	if deleted {
		srv.log(ctx).Info("Deactivated account purged", slog.Any("accountID", accountID))
	}

	return deleted, nil
}

// remove deletes the account when deleteFn still matches it. A missing account counts as not deleted.
func (srv *expiryService) remove(ctx context.Context, accountID uuid.UUID, deleteFn accountDeleter) (bool, error) {
	removed, err := removeAccount(ctx, srv.txManager, accountID, deleteFn)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return removed.deleted, nil
}

// Sweep finds overdue entities in the database and cleans them, so cleanups lost with a
// scheduler restart still happen. Errors on single entities do not stop the sweep.
func (srv *expiryService) Sweep(ctx context.Context) (*usecase.SweepResult, error) {
	now := srv.now()
	result := &usecase.SweepResult{}
	var errs []error

	unconfirmed, err := srv.accountRepo.ListUnconfirmedBefore(ctx, now.Add(-srv.confirmDelay), srv.batchSize)
	if err != nil {
		errs = append(errs, errors.Wrap(err, "failed to list unconfirmed accounts"))
	}
	for _, id := range unconfirmed {
		deleted, err := srv.ExpireUnconfirmedAccount(ctx, id)
		if err != nil {
			errs = append(errs, err)

			continue
		}
		if deleted {
			result.UnconfirmedAccounts++
		}
	}

	inactive, err := srv.accountRepo.ListInactiveBefore(ctx, now.Add(-srv.purgeDelay), srv.batchSize)
	if err != nil {
		errs = append(errs, errors.Wrap(err, "failed to list deactivated accounts"))
	}
	for _, id := range inactive {
		deleted, err := srv.PurgeInactiveAccount(ctx, id)
		if err != nil {
			errs = append(errs, err)

			continue
		}
		if deleted {
			result.PurgedAccounts++
		}
	}

	pending, err := srv.occupationRepo.ListPendingBefore(ctx, now.Add(-srv.deviceTimeout), srv.batchSize)
	if err != nil {
		errs = append(errs, errors.Wrap(err, "failed to list pending occupations"))
	}
	for _, id := range pending {
		expired, err := srv.reservations.ExpirePendingOccupation(ctx, id)
		if err != nil {
			errs = append(errs, err)

			continue
		}
		if expired {
			result.ExpiredOccupations++
		}
	}

	return result, errors.Join(errs...)
}
