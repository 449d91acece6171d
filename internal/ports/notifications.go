package ports

import (
	"context"
	"pi360-service/internal/domain"
)

// Remote store of the signed-in user's notifications.
type NotificationSource interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Sink for incremental notification events coming from the push relay.
type NotificationSink interface {
	Enqueue(evt domain.NotificationEvent) bool
}
