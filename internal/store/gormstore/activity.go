package gormstore

import (
	"context"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) InsertActivity(ctx context.Context, activity tontine.Activity) error {
	model := Activity{
		UserID:      activity.UserID.Int64(),
		Type:        activity.Type,
		Description: activity.Description,
		Details:     datatypesJSON(activity.Details.String()),
		IPAddress:   activity.IPAddress,
		UserAgent:   activity.UserAgent,
		CreatedAt:   activity.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectActivity, errorCodeInsert, err)
	}
	return nil
}

// ListActivities returns matching activity, newest first.
func (store *Store) ListActivities(ctx context.Context, filter tontine.ActivityFilter) ([]tontine.Activity, error) {
	var rows []Activity
	err := applyActivityFilter(store.db.WithContext(ctx).Model(&Activity{}), filter).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectActivity, errorCodeList, err)
	}
	activities := make([]tontine.Activity, 0, len(rows))
	for _, row := range rows {
		details, err := tontine.NewMetadataJSON(string(row.Details))
		if err != nil {
			return nil, wrapStoreError(errorSubjectActivity, errorCodeInvalid, err)
		}
		activities = append(activities, tontine.Activity{
			ID:          row.ID,
			UserID:      tontine.UserID(row.UserID),
			Type:        row.Type,
			Description: row.Description,
			Details:     details,
			IPAddress:   row.IPAddress,
			UserAgent:   row.UserAgent,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return activities, nil
}

func (store *Store) CountActivities(ctx context.Context, filter tontine.ActivityFilter) (int64, error) {
	var count int64
	err := applyActivityFilter(store.db.WithContext(ctx).Model(&Activity{}), filter).Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectActivity, errorCodeCount, err)
	}
	return count, nil
}

func applyActivityFilter(query *gorm.DB, filter tontine.ActivityFilter) *gorm.DB {
	if filter.UserID != nil {
		query = query.Where("user_id = ?", filter.UserID.Int64())
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since.UTC())
	}
	return query
}
