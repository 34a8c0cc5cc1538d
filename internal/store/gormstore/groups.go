package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) CreateGroup(ctx context.Context, group tontine.Group) (tontine.Group, error) {
	model := groupModel(group)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, errorCodeDuplicate, err)
	}
	if err != nil {
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, errorCodeCreate, err)
	}
	return mapGroup(model)
}

func (store *Store) GetGroup(ctx context.Context, groupID tontine.GroupID) (tontine.Group, error) {
	return store.takeGroup(store.db.WithContext(ctx).Where("id = ?", groupID.Int64()), errorCodeGet)
}

// LockGroup reads the group row FOR UPDATE so concurrent money movements on the group queue behind each other.
func (store *Store) LockGroup(ctx context.Context, groupID tontine.GroupID) (tontine.Group, error) {
	return store.takeGroup(store.locking(store.db.WithContext(ctx)).Where("id = ?", groupID.Int64()), errorCodeLock)
}

func (store *Store) GetGroupByToken(ctx context.Context, token string) (tontine.Group, error) {
	return store.takeGroup(store.db.WithContext(ctx).Where("access_token = ?", token), errorCodeLookup)
}

func (store *Store) takeGroup(query *gorm.DB, code string) (tontine.Group, error) {
	var model Group
	err := query.Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tontine.Group{}, wrapStoreError(errorSubjectGroup, code, tontine.ErrGroupNotFound)
		}
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, code, err)
	}
	return mapGroup(model)
}

func (store *Store) UpdateGroup(ctx context.Context, group tontine.Group) (tontine.Group, error) {
	model := groupModel(group)
	result := store.db.WithContext(ctx).
		Model(&Group{}).
		Where("id = ?", group.ID.Int64()).
		Updates(map[string]any{
			"name":            model.Name,
			"description":     model.Description,
			"bareme":          model.Bareme,
			"commission_rate": model.CommissionRate,
			"duration_days":   model.DurationDays,
			"start_date":      model.StartDate,
			"phone":           model.Phone,
			"status":          model.Status,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, errorCodeUpdate, tontine.ErrGroupNotFound)
	}
	return store.GetGroup(ctx, group.ID)
}

// DeleteGroup removes the group, its participants, and its requests. Ledger rows stay for auditing.
func (store *Store) DeleteGroup(ctx context.Context, groupID tontine.GroupID) error {
	db := store.db.WithContext(ctx)
	if err := db.Where("group_id = ?", groupID.Int64()).Delete(&Participant{}).Error; err != nil {
		return wrapStoreError(errorSubjectParticipant, errorCodeDelete, err)
	}
	if err := db.Where("group_id = ?", groupID.Int64()).Delete(&ParticipationRequest{}).Error; err != nil {
		return wrapStoreError(errorSubjectRequest, errorCodeDelete, err)
	}
	result := db.Where("id = ?", groupID.Int64()).Delete(&Group{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectGroup, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectGroup, errorCodeDelete, tontine.ErrGroupNotFound)
	}
	return nil
}

func (store *Store) ListGroups(ctx context.Context, filter tontine.GroupFilter) ([]tontine.Group, error) {
	query := store.db.WithContext(ctx).Model(&Group{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", filter.OwnerID.Int64())
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []Group
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectGroup, errorCodeList, err)
	}
	return mapGroups(rows)
}

func (store *Store) CountGroupsByOwner(ctx context.Context, ownerID tontine.UserID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Group{}).Where("owner_id = ?", ownerID.Int64()).Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectGroup, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) groupsByID(ctx context.Context, ids []int64) (map[int64]tontine.Group, error) {
	groups := make(map[int64]tontine.Group, len(ids))
	if len(ids) == 0 {
		return groups, nil
	}
	var rows []Group
	if err := store.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectGroup, errorCodeList, err)
	}
	for _, row := range rows {
		group, err := mapGroup(row)
		if err != nil {
			return nil, err
		}
		groups[row.ID] = group
	}
	return groups, nil
}

func groupModel(group tontine.Group) Group {
	startDate := group.StartDate
	if startDate != nil {
		normalized := startDate.UTC()
		startDate = &normalized
	}
	return Group{
		ID:             group.ID.Int64(),
		Kind:           string(group.Kind),
		OwnerID:        group.OwnerID.Int64(),
		Name:           group.Name,
		Description:    group.Description,
		Bareme:         group.Bareme.Int64(),
		CommissionRate: group.CommissionRate,
		DurationDays:   group.DurationDays,
		StartDate:      startDate,
		Phone:          group.Phone,
		AccessToken:    group.AccessToken,
		Status:         string(group.Status),
		CreatedAt:      group.CreatedAt,
		UpdatedAt:      group.UpdatedAt,
	}
}

func mapGroup(row Group) (tontine.Group, error) {
	kind, err := tontine.ParseGroupKind(row.Kind)
	if err != nil {
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, errorCodeInvalid, err)
	}
	bareme, err := tontine.NewAmount(row.Bareme)
	if err != nil {
		return tontine.Group{}, wrapStoreError(errorSubjectGroup, errorCodeInvalid, err)
	}
	startDate := row.StartDate
	if startDate != nil {
		normalized := startDate.UTC()
		startDate = &normalized
	}
	return tontine.Group{
		ID:             tontine.GroupID(row.ID),
		Kind:           kind,
		OwnerID:        tontine.UserID(row.OwnerID),
		Name:           row.Name,
		Description:    row.Description,
		Bareme:         bareme,
		CommissionRate: row.CommissionRate,
		DurationDays:   row.DurationDays,
		StartDate:      startDate,
		Phone:          row.Phone,
		AccessToken:    row.AccessToken,
		Status:         tontine.GroupStatus(row.Status),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}, nil
}

func mapGroups(rows []Group) ([]tontine.Group, error) {
	groups := make([]tontine.Group, 0, len(rows))
	for _, row := range rows {
		group, err := mapGroup(row)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}
