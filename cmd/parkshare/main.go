package main

import (
	"context"
	"log/slog"
	"os"

	"parkshare/config"
	"parkshare/internal/delivery"
	"parkshare/internal/delivery/api"
	"parkshare/internal/delivery/api/middleware"
	"parkshare/internal/delivery/api/router/handler"
	"parkshare/internal/delivery/consumer"
	"parkshare/internal/delivery/jobs"
	"parkshare/internal/infra/auth"
	logs "parkshare/internal/infra/log"
	"parkshare/internal/infra/notification"
	"parkshare/internal/infra/persistence/postgres"
	"parkshare/internal/infra/pubsub"
	"parkshare/internal/infra/qrcode"
	"parkshare/internal/infra/rabbitmq"
	"parkshare/internal/infra/ratelimit"
	"parkshare/internal/infra/redis"
	"parkshare/internal/infra/report"
	"parkshare/internal/infra/scheduler"
	"parkshare/internal/infra/signal"
	"parkshare/internal/infra/tracing"
	"parkshare/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			tracing.Register,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
		redis.New,
		rabbitmq.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewAccountRepository,
			postgres.NewParkingRepository,
			postgres.NewOccupationRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTService,
			auth.NewSecretGenerator,
			qrcode.NewQRCodeService,
			report.NewExcelReport,
			notification.NewSMTPSender,
			notification.NewHTTPSMSSender,
			notification.NewDispatcher,
			notification.NewNotifier,
			scheduler.NewScheduler,
			signal.NewOccupancySignal,
			ratelimit.New,
		),
		pubsub.Module,
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewCredentialService,
			impl.NewAuthService,
			impl.NewParkingService,
			impl.NewReservationService,
			impl.NewExpiryService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewRateLimitMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewAccountHandler,
			handler.NewParkingHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				jobs.NewRunner,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				consumer.NewDeviceConsumer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
