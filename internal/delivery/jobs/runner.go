// Package jobs runs the scheduled cleanups and the periodic expiry sweep.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parkshare/config"
	"parkshare/internal/delivery"
	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/lifecycle"
	"parkshare/internal/domain/service"
	"parkshare/internal/infra/metrics"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	sourceScheduler = "scheduler"
	sourceSweeper   = "sweeper"
)

// Params holds dependencies for the job runner, injected by Fx.
type Params struct {
	fx.In

	Lc            fx.Lifecycle
	Config        *config.Config
	Logger        *slog.Logger
	Scheduler     service.Scheduler
	ExpiryUC      usecase.ExpiryUsecase
	ReservationUC usecase.ReservationUsecase
}

// Runner dispatches scheduled jobs and sweeps overdue cleanups the scheduler missed.
type Runner struct {
	scheduler     service.Scheduler
	expiryUC      usecase.ExpiryUsecase
	reservationUC usecase.ReservationUsecase
	sweepInterval time.Duration
	logger        *slog.Logger

	stopCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner registers the job handlers right away so jobs scheduled by early requests find them.
func NewRunner(params Params) delivery.Delivery {
	runner := newRunner(params.Scheduler, params.ExpiryUC, params.ReservationUC,
		params.Config.Scheduler.SweepInterval, params.Logger)

	params.Lc.Append(fx.Hook{
		OnStop: runner.shutdown,
	})

	return runner
}

func newRunner(
	scheduler service.Scheduler,
	expiryUC usecase.ExpiryUsecase,
	reservationUC usecase.ReservationUsecase,
	sweepInterval time.Duration,
	logger *slog.Logger,
) *Runner {
	stopCtx, stop := context.WithCancel(context.Background())
	r := &Runner{
		scheduler:     scheduler,
		expiryUC:      expiryUC,
		reservationUC: reservationUC,
		sweepInterval: sweepInterval,
		logger:        logger,
		stopCtx:       stopCtx,
		stop:          stop,
	}

	scheduler.Register(entity.JobAccountUnconfirmedExpiry, r.handle(entity.JobAccountUnconfirmedExpiry, expiryUC.ExpireUnconfirmedAccount))
	scheduler.Register(entity.JobAccountPurge, r.handle(entity.JobAccountPurge, expiryUC.PurgeInactiveAccount))
	scheduler.Register(entity.JobOccupationConfirmationTimeout,
		r.handle(entity.JobOccupationConfirmationTimeout, reservationUC.ExpirePendingOccupation))

	return r
}

// Serve blocks until the runner is stopped.
func (r *Runner) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(r.stopCtx, cancel)
	defer stopWatch()

	r.wg.Add(1)
	defer r.wg.Done()

	r.logger.Info("Starting job runner", slog.Duration("sweep_interval", r.sweepInterval))

	var loops sync.WaitGroup
	loops.Add(1)
	go func() {
		defer loops.Done()
		r.sweepLoop(ctx)
	}()

	err := r.scheduler.Run(ctx)
	cancel()
	loops.Wait()

	return errors.Wrap(err, "scheduler stopped")
}

func (r *Runner) shutdown(ctx context.Context) error {
	r.logger.Info("Stopping job runner")
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, lifecycle.DrainTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-drainCtx.Done():
		return errors.Wrap(drainCtx.Err(), "job runner did not stop in time")
	}
}

// handle adapts a cleanup use case to a job handler. A cleanup that finds nothing to do is not an error.
func (r *Runner) handle(kind entity.JobKind, cleanup func(context.Context, uuid.UUID) (bool, error)) service.JobHandler {
	return func(ctx context.Context, job entity.Job) error {
		logger := r.logger.With(slog.String("job_key", job.Key), slog.Int("attempt", job.Attempts))
		ctx = deliverycontext.WithLogger(ctx, logger)

		done, err := cleanup(ctx, job.EntityID)
		metrics.ObserveCleanup(sourceScheduler, string(kind), err)
		if err != nil {
			return errors.Wrapf(err, "run %s", kind)
		}
		if done {
			logger.Info("Scheduled cleanup applied", slog.String("kind", string(kind)))
		}

		return nil
	}
}

func (r *Runner) sweepLoop(ctx context.Context) {
	if r.sweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	result, err := r.expiryUC.Sweep(ctx)
	if result == nil {
		result = &usecase.SweepResult{}
	}

	observeSwept(string(entity.JobAccountUnconfirmedExpiry), result.UnconfirmedAccounts)
	observeSwept(string(entity.JobAccountPurge), result.PurgedAccounts)
	observeSwept(string(entity.JobOccupationConfirmationTimeout), result.ExpiredOccupations)

	counts := []any{
		slog.Int("unconfirmed_accounts", result.UnconfirmedAccounts),
		slog.Int("purged_accounts", result.PurgedAccounts),
		slog.Int("expired_occupations", result.ExpiredOccupations),
	}
	if err != nil {
		metrics.ObserveCleanup(sourceSweeper, "all", err)
		if ctx.Err() == nil {
			r.logger.Error("Expiry sweep finished with errors", append(counts, slog.Any("error", err))...)
		}

		return
	}

	if result.UnconfirmedAccounts+result.PurgedAccounts+result.ExpiredOccupations > 0 {
		r.logger.Info("Expiry sweep cleaned overdue entities", counts...)
	}
}

func observeSwept(kind string, n int) {
	for range n {
		metrics.ObserveCleanup(sourceSweeper, kind, nil)
	}
}
