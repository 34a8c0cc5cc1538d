package gormstore

import (
	"context"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
)

func (store *Store) InsertNotification(ctx context.Context, notification tontine.Notification) (tontine.Notification, error) {
	model := Notification{
		UserID:    notification.UserID.Int64(),
		Title:     notification.Title,
		Body:      notification.Body,
		Metadata:  datatypesJSON(notification.Metadata.String()),
		IsRead:    notification.IsRead,
		CreatedAt: notification.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return tontine.Notification{}, wrapStoreError(errorSubjectNotification, errorCodeInsert, err)
	}
	return mapNotification(model)
}

// ListNotifications returns the user's newest notifications first.
func (store *Store) ListNotifications(ctx context.Context, userID tontine.UserID, limit int) ([]tontine.Notification, error) {
	query := store.db.WithContext(ctx).
		Where("user_id = ?", userID.Int64()).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectNotification, errorCodeList, err)
	}
	notifications := make([]tontine.Notification, 0, len(rows))
	for _, row := range rows {
		notification, err := mapNotification(row)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

func (store *Store) DeleteNotification(ctx context.Context, userID tontine.UserID, notificationID tontine.NotificationID) error {
	result := store.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID.Int64(), userID.Int64()).
		Delete(&Notification{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectNotification, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectNotification, errorCodeDelete, tontine.ErrNotificationNotFound)
	}
	return nil
}

func (store *Store) ClearNotifications(ctx context.Context, userID tontine.UserID) (int64, error) {
	result := store.db.WithContext(ctx).Where("user_id = ?", userID.Int64()).Delete(&Notification{})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectNotification, errorCodeDelete, result.Error)
	}
	return result.RowsAffected, nil
}

func mapNotification(row Notification) (tontine.Notification, error) {
	metadata, err := tontine.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return tontine.Notification{}, wrapStoreError(errorSubjectNotification, errorCodeInvalid, err)
	}
	return tontine.Notification{
		ID:        tontine.NotificationID(row.ID),
		UserID:    tontine.UserID(row.UserID),
		Title:     row.Title,
		Body:      row.Body,
		Metadata:  metadata,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}
