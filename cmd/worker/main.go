package main

import (
	"context"
	"log/slog"
	"os"

	"parkshare/config"
	"parkshare/internal/delivery"
	"parkshare/internal/delivery/worker"
	"parkshare/internal/delivery/worker/handler"
	"parkshare/internal/domain/service"
	logs "parkshare/internal/infra/log"
	"parkshare/internal/infra/notification"
	"parkshare/internal/infra/rabbitmq"
	"parkshare/internal/infra/tracing"

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
		injectService(),
		injectHandler(),
		injectDelivery(),
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
		rabbitmq.New,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			notification.NewSMTPSender,
			notification.NewHTTPSMSSender,
			notification.NewDispatcher,
			// The worker is the last hop: it delivers instead of publishing again.
			func(d *notification.Dispatcher) service.Notifier { return d },
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewPushHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				worker.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				worker.NewConsumer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(params startServerParams) {
	ctx := context.Background()
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
