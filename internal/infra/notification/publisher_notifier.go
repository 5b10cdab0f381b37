package notification

import (
	"context"

	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/service"

	"github.com/pkg/errors"
)

// publisherNotifier hands notifications to the event publisher. Depending on the
// provider they are delivered inline or by the worker.
type publisherNotifier struct {
	publisher service.EventPublisher
}

// NewNotifier creates the service.Notifier used by the use cases.
func NewNotifier(publisher service.EventPublisher) service.Notifier {
	return &publisherNotifier{publisher: publisher}
}

// Send publishes the notification with the request id of ctx.
func (n *publisherNotifier) Send(ctx context.Context, notification *entity.Notification) error {
	event := &service.NotificationEvent{
		RequestID:    deliverycontext.GetRequestIDFromContext(ctx),
		Notification: notification,
	}
	if err := n.publisher.PublishNotificationEvent(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish notification")
	}

	return nil
}
