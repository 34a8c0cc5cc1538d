package tontine

import (
	"context"
	"strings"
)

// Notifier delivers notifications outside the caller's transaction.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notification Notification) error

// Notify calls the wrapped function.
func (fn NotifierFunc) Notify(ctx context.Context, notification Notification) error {
	return fn(ctx, notification)
}

type storeNotifier struct {
	store NotificationStore
}

// NewStoreNotifier returns a Notifier that writes straight to the store.
func NewStoreNotifier(store NotificationStore) Notifier {
	return &storeNotifier{store: store}
}

func (notifier *storeNotifier) Notify(ctx context.Context, notification Notification) error {
	notification.Title = strings.TrimSpace(notification.Title)
	_, err := notifier.store.InsertNotification(ctx, notification)
	return err
}

// Notifications lists the caller's most recent notifications.
func (service *Service) Notifications(ctx context.Context, userID UserID) ([]Notification, error) {
	return service.store.ListNotifications(ctx, userID, notificationListLimit)
}

// DeleteNotification consumes one of the caller's notifications.
func (service *Service) DeleteNotification(ctx context.Context, userID UserID, notificationID NotificationID) error {
	return service.store.DeleteNotification(ctx, userID, notificationID)
}

// ClearNotifications removes all of the caller's notifications.
func (service *Service) ClearNotifications(ctx context.Context, userID UserID) (int64, error) {
	return service.store.ClearNotifications(ctx, userID)
}
