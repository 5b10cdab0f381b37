package service

import (
	"context"

	"parkshare/internal/domain/entity"
)

// Notifier delivers a notification to its recipient.
// Implementations either deliver directly or hand the message to a queue.
type Notifier interface {
	Send(ctx context.Context, notification *entity.Notification) error
}
