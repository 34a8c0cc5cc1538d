package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) InsertMessage(ctx context.Context, message tontine.Message) (tontine.Message, error) {
	var groupID *int64
	if message.GroupID != nil {
		value := message.GroupID.Int64()
		groupID = &value
	}
	model := Message{
		SenderID:   message.SenderID.Int64(),
		ReceiverID: message.ReceiverID.Int64(),
		GroupID:    groupID,
		Content:    message.Content,
		IsRead:     message.IsRead,
		ReadAt:     message.ReadAt,
		CreatedAt:  message.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return tontine.Message{}, wrapStoreError(errorSubjectMessage, errorCodeInsert, err)
	}
	return mapMessage(model), nil
}

func (store *Store) GetMessage(ctx context.Context, messageID tontine.MessageID) (tontine.Message, error) {
	var model Message
	err := store.db.WithContext(ctx).Where("id = ?", messageID.Int64()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tontine.Message{}, wrapStoreError(errorSubjectMessage, errorCodeGet, tontine.ErrMessageNotFound)
		}
		return tontine.Message{}, wrapStoreError(errorSubjectMessage, errorCodeGet, err)
	}
	return mapMessage(model), nil
}

func (store *Store) ListConversation(ctx context.Context, userID tontine.UserID, otherID tontine.UserID, groupID *tontine.GroupID) ([]tontine.Message, error) {
	query := betweenUsers(store.db.WithContext(ctx), userID, otherID)
	if groupID != nil {
		query = query.Where("group_id = ?", groupID.Int64())
	}
	return findMessages(query.Order("created_at ASC").Order("id ASC"))
}

// ListLatestMessages picks max(id) per unordered sender/receiver pair; one side of every pair is userID.
func (store *Store) ListLatestMessages(ctx context.Context, userID tontine.UserID, limit int) ([]tontine.Message, error) {
	latestIDs := store.db.WithContext(ctx).
		Model(&Message{}).
		Select("MAX(id)").
		Where("sender_id = ? OR receiver_id = ?", userID.Int64(), userID.Int64()).
		Group(messagePairLow).
		Group(messagePairHigh)
	query := store.db.WithContext(ctx).
		Where("id IN (?)", latestIDs).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return findMessages(query)
}

func (store *Store) CountUnreadBySender(ctx context.Context, userID tontine.UserID) (map[tontine.UserID]int, error) {
	var rows []struct {
		SenderID int64
		Unread   int
	}
	err := store.db.WithContext(ctx).
		Model(&Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND is_read = ?", userID.Int64(), false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectMessage, errorCodeCount, err)
	}
	counts := make(map[tontine.UserID]int, len(rows))
	for _, row := range rows {
		counts[tontine.UserID(row.SenderID)] = row.Unread
	}
	return counts, nil
}

func (store *Store) ListUnreadMessages(ctx context.Context, userID tontine.UserID) ([]tontine.Message, error) {
	query := store.db.WithContext(ctx).
		Where("receiver_id = ? AND is_read = ?", userID.Int64(), false).
		Order("created_at DESC").
		Order("id DESC")
	return findMessages(query)
}

func (store *Store) MarkMessagesRead(ctx context.Context, receiverID tontine.UserID, filter tontine.ReadFilter, at time.Time) (int64, error) {
	query := store.db.WithContext(ctx).
		Model(&Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID.Int64(), false)
	switch {
	case len(filter.MessageIDs) > 0:
		ids := make([]int64, 0, len(filter.MessageIDs))
		for _, messageID := range filter.MessageIDs {
			ids = append(ids, messageID.Int64())
		}
		query = query.Where("id IN ?", ids)
	case filter.SenderID != nil:
		query = query.Where("sender_id = ?", filter.SenderID.Int64())
	default:
		return 0, wrapStoreError(errorSubjectMessage, errorCodeUpdate, tontine.ErrInvalidMessage)
	}
	result := query.Updates(map[string]any{"is_read": true, "read_at": at})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectMessage, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) DeleteMessage(ctx context.Context, messageID tontine.MessageID) error {
	result := store.db.WithContext(ctx).Where("id = ?", messageID.Int64()).Delete(&Message{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectMessage, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectMessage, errorCodeDelete, tontine.ErrMessageNotFound)
	}
	return nil
}

func (store *Store) DeleteConversation(ctx context.Context, userID tontine.UserID, otherID tontine.UserID) (int64, error) {
	result := betweenUsers(store.db.WithContext(ctx), userID, otherID).Delete(&Message{})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectMessage, errorCodeDelete, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) DeleteMessagesForUser(ctx context.Context, userID tontine.UserID) (int64, error) {
	result := store.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID.Int64(), userID.Int64()).
		Delete(&Message{})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectMessage, errorCodeDelete, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) CountMessagesSent(ctx context.Context, userID tontine.UserID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Message{}).Where("sender_id = ?", userID.Int64()).Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectMessage, errorCodeCount, err)
	}
	return count, nil
}

const (
	messagePairLow  = "CASE WHEN sender_id < receiver_id THEN sender_id ELSE receiver_id END"
	messagePairHigh = "CASE WHEN sender_id < receiver_id THEN receiver_id ELSE sender_id END"
)

func betweenUsers(query *gorm.DB, userID tontine.UserID, otherID tontine.UserID) *gorm.DB {
	return query.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID.Int64(), otherID.Int64(), otherID.Int64(), userID.Int64(),
	)
}

func findMessages(query *gorm.DB) ([]tontine.Message, error) {
	var rows []Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectMessage, errorCodeList, err)
	}
	messages := make([]tontine.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, mapMessage(row))
	}
	return messages, nil
}

func mapMessage(row Message) tontine.Message {
	return tontine.Message{
		ID:         tontine.MessageID(row.ID),
		SenderID:   tontine.UserID(row.SenderID),
		ReceiverID: tontine.UserID(row.ReceiverID),
		GroupID:    optionalGroupID(row.GroupID),
		Content:    row.Content,
		IsRead:     row.IsRead,
		ReadAt:     utcPointer(row.ReadAt),
		CreatedAt:  row.CreatedAt.UTC(),
	}
}
