package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"parkshare/internal/domain/service"
	"parkshare/internal/infra/rabbitmq"

	"github.com/pkg/errors"
)

// rabbitMQPublisher implements EventPublisher on a durable RabbitMQ queue.
type rabbitMQPublisher struct {
	broker *rabbitmq.Broker
	queue  string
	logger *slog.Logger
}

// NewRabbitMQPublisher creates a publisher writing to queue. The broker is owned by its own lifecycle.
func NewRabbitMQPublisher(broker *rabbitmq.Broker, queue string, logger *slog.Logger) service.EventPublisher {
	return &rabbitMQPublisher{broker: broker, queue: queue, logger: logger}
}

func (p *rabbitMQPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := p.broker.Publish(ctx, p.queue, data, eventAttributes(event)); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "[RabbitMQ] Event published", slog.String("queue", p.queue))

	return nil
}

func (p *rabbitMQPublisher) Close() error {
	return nil
}
