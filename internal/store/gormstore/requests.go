package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) CreateRequest(ctx context.Context, request tontine.ParticipationRequest) (tontine.ParticipationRequest, error) {
	model := ParticipationRequest{
		GroupID:   request.GroupID.Int64(),
		UserID:    request.UserID.Int64(),
		Status:    string(request.Status),
		CreatedAt: request.CreatedAt,
		UpdatedAt: request.UpdatedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return tontine.ParticipationRequest{}, wrapStoreError(errorSubjectRequest, errorCodeDuplicate, tontine.ErrRequestPending)
	}
	if err != nil {
		return tontine.ParticipationRequest{}, wrapStoreError(errorSubjectRequest, errorCodeCreate, err)
	}
	created, err := mapRequest(model)
	if err != nil {
		return tontine.ParticipationRequest{}, err
	}
	created.Group = request.Group
	created.Requester = request.Requester
	return created, nil
}

func (store *Store) GetRequest(ctx context.Context, requestID tontine.RequestID) (tontine.ParticipationRequest, error) {
	var model ParticipationRequest
	err := store.db.WithContext(ctx).Where("id = ?", requestID.Int64()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tontine.ParticipationRequest{}, wrapStoreError(errorSubjectRequest, errorCodeGet, tontine.ErrRequestNotFound)
		}
		return tontine.ParticipationRequest{}, wrapStoreError(errorSubjectRequest, errorCodeGet, err)
	}
	return mapRequest(model)
}

func (store *Store) HasPendingRequest(ctx context.Context, groupID tontine.GroupID, userID tontine.UserID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&ParticipationRequest{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID.Int64(), userID.Int64(), string(tontine.RequestStatusPending)).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectRequest, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) ResolveRequest(ctx context.Context, requestID tontine.RequestID, status tontine.RequestStatus, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&ParticipationRequest{}).
		Where("id = ? AND status = ?", requestID.Int64(), string(tontine.RequestStatusPending)).
		Updates(map[string]any{"status": string(status), "updated_at": at})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRequest, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRequest, errorCodeUpdateStatus, tontine.ErrRequestResolved)
	}
	return nil
}

// ListPendingRequests returns pending requests on the owner's groups, newest first, with group and requester filled in.
func (store *Store) ListPendingRequests(ctx context.Context, ownerID tontine.UserID) ([]tontine.ParticipationRequest, error) {
	var rows []ParticipationRequest
	err := store.pendingForOwner(ctx, ownerID).
		Order("participation_requests.created_at DESC").
		Order("participation_requests.id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRequest, errorCodeList, err)
	}
	groupIDs := make([]int64, 0, len(rows))
	requesterIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		groupIDs = append(groupIDs, row.GroupID)
		requesterIDs = append(requesterIDs, row.UserID)
	}
	groups, err := store.groupsByID(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	users, err := store.ListUsers(ctx, userIDs(requesterIDs))
	if err != nil {
		return nil, err
	}
	requests := make([]tontine.ParticipationRequest, 0, len(rows))
	for _, row := range rows {
		request, err := mapRequest(row)
		if err != nil {
			return nil, err
		}
		request.Group = groups[row.GroupID].Summary()
		if user, ok := users[request.UserID]; ok {
			request.Requester = user.Summary()
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (store *Store) CountPendingRequests(ctx context.Context, ownerID tontine.UserID) (int64, error) {
	var count int64
	if err := store.pendingForOwner(ctx, ownerID).Count(&count).Error; err != nil {
		return 0, wrapStoreError(errorSubjectRequest, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) pendingForOwner(ctx context.Context, ownerID tontine.UserID) *gorm.DB {
	return store.db.WithContext(ctx).
		Model(&ParticipationRequest{}).
		Joins("JOIN savings_groups ON savings_groups.id = participation_requests.group_id").
		Where("savings_groups.owner_id = ? AND participation_requests.status = ?", ownerID.Int64(), string(tontine.RequestStatusPending))
}

func mapRequest(row ParticipationRequest) (tontine.ParticipationRequest, error) {
	status, err := tontine.ParseRequestStatus(row.Status)
	if err != nil {
		return tontine.ParticipationRequest{}, wrapStoreError(errorSubjectRequest, errorCodeInvalid, err)
	}
	return tontine.ParticipationRequest{
		ID:        tontine.RequestID(row.ID),
		UserID:    tontine.UserID(row.UserID),
		GroupID:   tontine.GroupID(row.GroupID),
		Status:    status,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}
