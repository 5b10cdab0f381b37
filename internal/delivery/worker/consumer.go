package worker

import (
	"context"
	"log/slog"

	"parkshare/config"
	"parkshare/internal/delivery"
	"parkshare/internal/delivery/worker/handler"
	"parkshare/internal/infra/rabbitmq"

	"go.uber.org/fx"
)

// ConsumerParams holds dependencies for the notification queue consumer.
type ConsumerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	Broker      *rabbitmq.Broker `optional:"true"`
	PushHandler *handler.PushHandler
}

type notificationConsumer struct {
	broker  *rabbitmq.Broker
	queue   string
	handler *handler.PushHandler
	logger  *slog.Logger

	stopCtx context.Context
	stop    context.CancelFunc
}

// NewConsumer reads the RabbitMQ notification queue. Without a broker it serves nothing.
func NewConsumer(params ConsumerParams) delivery.Delivery {
	stopCtx, stop := context.WithCancel(context.Background())
	c := &notificationConsumer{
		broker:  params.Broker,
		handler: params.PushHandler,
		logger:  params.Logger,
		stopCtx: stopCtx,
		stop:    stop,
	}
	if params.Cfg.RabbitMQ != nil {
		c.queue = params.Cfg.RabbitMQ.NotificationQueue
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stop()

			return nil
		},
	})

	return c
}

func (c *notificationConsumer) Serve(ctx context.Context) error {
	if c.broker == nil || c.queue == "" {
		c.logger.Info("RabbitMQ not configured, notification consumer disabled")

		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(c.stopCtx, cancel)
	defer stopWatch()

	return c.broker.Consume(ctx, c.queue, c.handler.HandleMessage)
}
