package service

import (
	"context"

	"parkshare/internal/domain/entity"
)

// NotificationEvent represents a notification handed to the delivery worker.
type NotificationEvent struct {
	RequestID    string               `json:"request_id,omitempty"` // For distributed tracing
	Notification *entity.Notification `json:"notification"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishNotificationEvent publishes a notification event for async processing
	PublishNotificationEvent(ctx context.Context, event *NotificationEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
