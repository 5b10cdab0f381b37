package pubsub

import (
	"context"
	"log/slog"

	"parkshare/config"
	"parkshare/internal/domain/constants"
	"parkshare/internal/domain/service"
	"parkshare/internal/infra/notification"
	"parkshare/internal/infra/rabbitmq"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// inlinePublisher delivers events in-process so delivery errors reach the caller.
type inlinePublisher struct {
	dispatcher *notification.Dispatcher
	logger     *slog.Logger
}

// NewInlinePublisher creates a publisher that dispatches synchronously.
func NewInlinePublisher(dispatcher *notification.Dispatcher, logger *slog.Logger) service.EventPublisher {
	return &inlinePublisher{dispatcher: dispatcher, logger: logger}
}

func (p *inlinePublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	if event == nil || event.Notification == nil {
		return errors.New("notification event is empty")
	}

	p.logger.DebugContext(ctx, "[InlinePubSub] Dispatching event",
		slog.String("template", string(event.Notification.Template)),
	)

	return p.dispatcher.Send(ctx, event.Notification)
}

func (p *inlinePublisher) Close() error {
	return nil
}

// eventAttributes builds the message attributes used for routing and tracing.
func eventAttributes(event *service.NotificationEvent) map[string]string {
	attributes := map[string]string{}
	if event.Notification != nil {
		attributes["template"] = string(event.Notification.Template)
		attributes["channel"] = string(event.Notification.Channel)
	}
	if event.RequestID != "" {
		attributes["request_id"] = event.RequestID
	}

	return attributes
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc         fx.Lifecycle
	Ctx        context.Context
	Config     *config.Config
	Logger     *slog.Logger
	Dispatcher *notification.Dispatcher
	Broker     *rabbitmq.Broker `optional:"true"`
}

// NewEventPublisher creates an EventPublisher based on configuration
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.PubSub
	logger := params.Logger

	if cfg == nil || cfg.Provider == "" || cfg.Provider == constants.PubSubProviderNoop {
		logger.Info("No event bus configured, delivering notifications inline")

		return NewInlinePublisher(params.Dispatcher, logger), nil
	}

	var publisher service.EventPublisher
	var err error

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP publisher for Pub/Sub",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, logger)

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for google provider")
		}
		logger.Info("Using Google Pub/Sub publisher",
			slog.String("project_id", cfg.ProjectID),
			slog.String("topic_id", cfg.TopicID),
		)

		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, err
		}

	case constants.PubSubProviderRabbitMQ:
		if params.Broker == nil {
			return nil, errors.New("rabbitmq url is required for rabbitmq provider")
		}
		logger.Info("Using RabbitMQ publisher",
			slog.String("queue", params.Config.RabbitMQ.NotificationQueue),
		)

		publisher = NewRabbitMQPublisher(params.Broker, params.Config.RabbitMQ.NotificationQueue, logger)

	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", cfg.Provider)
	}

	// Register lifecycle hook to close publisher on shutdown
	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing EventPublisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

// Module provides the Pub/Sub FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
