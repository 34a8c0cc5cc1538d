package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) AddParticipant(ctx context.Context, participant tontine.Participant) (tontine.Participant, error) {
	model := Participant{
		GroupID:       participant.GroupID.Int64(),
		UserID:        participant.UserID.Int64(),
		PaymentStatus: string(participant.PaymentStatus),
		FundsReceived: participant.FundsReceived,
		JoinedAt:      participant.JoinedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return tontine.Participant{}, wrapStoreError(errorSubjectParticipant, errorCodeDuplicate, tontine.ErrAlreadyParticipant)
	}
	if err != nil {
		return tontine.Participant{}, wrapStoreError(errorSubjectParticipant, errorCodeCreate, err)
	}
	return mapParticipant(model, tontine.UserSummary{ID: participant.UserID})
}

func (store *Store) GetParticipant(ctx context.Context, groupID tontine.GroupID, userID tontine.UserID) (tontine.Participant, error) {
	var model Participant
	err := store.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID.Int64(), userID.Int64()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tontine.Participant{}, wrapStoreError(errorSubjectParticipant, errorCodeGet, tontine.ErrParticipantNotFound)
		}
		return tontine.Participant{}, wrapStoreError(errorSubjectParticipant, errorCodeGet, err)
	}
	return mapParticipant(model, tontine.UserSummary{ID: userID})
}

func (store *Store) RemoveParticipant(ctx context.Context, groupID tontine.GroupID, userID tontine.UserID) error {
	result := store.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID.Int64(), userID.Int64()).
		Delete(&Participant{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectParticipant, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectParticipant, errorCodeDelete, tontine.ErrParticipantNotFound)
	}
	return nil
}

// ListParticipants returns the group's members with their public identity, in join order.
func (store *Store) ListParticipants(ctx context.Context, groupID tontine.GroupID) ([]tontine.Participant, error) {
	var rows []Participant
	err := store.db.WithContext(ctx).
		Where("group_id = ?", groupID.Int64()).
		Order("joined_at ASC").
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectParticipant, errorCodeList, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	users, err := store.ListUsers(ctx, userIDs(ids))
	if err != nil {
		return nil, err
	}
	participants := make([]tontine.Participant, 0, len(rows))
	for _, row := range rows {
		summary := tontine.UserSummary{ID: tontine.UserID(row.UserID)}
		if user, ok := users[summary.ID]; ok {
			summary = user.Summary()
		}
		participant, err := mapParticipant(row, summary)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, nil
}

func (store *Store) ListMemberships(ctx context.Context, userID tontine.UserID) ([]tontine.Membership, error) {
	var rows []Participant
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.Int64()).
		Order("joined_at DESC").
		Order("group_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectParticipant, errorCodeList, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.GroupID)
	}
	groups, err := store.groupsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	memberships := make([]tontine.Membership, 0, len(rows))
	for _, row := range rows {
		group, ok := groups[row.GroupID]
		if !ok {
			continue
		}
		participant, err := mapParticipant(row, tontine.UserSummary{ID: userID})
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, tontine.Membership{Group: group, Participant: participant})
	}
	return memberships, nil
}

func (store *Store) CountMemberships(ctx context.Context, userID tontine.UserID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Participant{}).Where("user_id = ?", userID.Int64()).Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectParticipant, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) CompletePayment(ctx context.Context, groupID tontine.GroupID, userID tontine.UserID, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Participant{}).
		Where("group_id = ? AND user_id = ? AND payment_status = ?", groupID.Int64(), userID.Int64(), string(tontine.PaymentStatusPending)).
		Updates(map[string]any{
			"payment_status": string(tontine.PaymentStatusCompleted),
			"payment_date":   at,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectParticipant, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectParticipant, errorCodeUpdateStatus, tontine.ErrAlreadyPaid)
	}
	return nil
}

func (store *Store) ResetPayment(ctx context.Context, groupID tontine.GroupID, userID tontine.UserID) error {
	result := store.db.WithContext(ctx).
		Model(&Participant{}).
		Where("group_id = ? AND user_id = ?", groupID.Int64(), userID.Int64()).
		Updates(map[string]any{
			"payment_status": string(tontine.PaymentStatusPending),
			"payment_date":   nil,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectParticipant, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectParticipant, errorCodeUpdateStatus, tontine.ErrParticipantNotFound)
	}
	return nil
}

func (store *Store) MarkFundsReceived(ctx context.Context, groupID tontine.GroupID, userID tontine.UserID, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Participant{}).
		Where("group_id = ? AND user_id = ?", groupID.Int64(), userID.Int64()).
		Updates(map[string]any{
			"funds_received":    true,
			"fund_receipt_date": at,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectParticipant, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectParticipant, errorCodeUpdate, tontine.ErrParticipantNotFound)
	}
	return nil
}

func mapParticipant(row Participant, user tontine.UserSummary) (tontine.Participant, error) {
	status, err := tontine.ParsePaymentStatus(row.PaymentStatus)
	if err != nil {
		return tontine.Participant{}, wrapStoreError(errorSubjectParticipant, errorCodeInvalid, err)
	}
	return tontine.Participant{
		GroupID:         tontine.GroupID(row.GroupID),
		UserID:          tontine.UserID(row.UserID),
		PaymentStatus:   status,
		PaymentDate:     utcPointer(row.PaymentDate),
		FundsReceived:   row.FundsReceived,
		FundReceiptDate: utcPointer(row.FundReceiptDate),
		JoinedAt:        row.JoinedAt.UTC(),
		User:            user,
	}, nil
}

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	normalized := value.UTC()
	return &normalized
}
