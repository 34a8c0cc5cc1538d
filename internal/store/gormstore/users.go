package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) CreateUser(ctx context.Context, user tontine.User) (tontine.User, error) {
	var existing int64
	err := store.db.WithContext(ctx).Model(&User{}).Where("email = ?", user.Email).Count(&existing).Error
	if err != nil {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeLookup, err)
	}
	if existing > 0 {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeDuplicate, tontine.ErrEmailTaken)
	}
	model := User{
		LastName:     user.LastName,
		FirstName:    user.FirstName,
		Email:        user.Email,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		IsPremium:    user.IsPremium,
		Balance:      user.Balance.Int64(),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeDuplicate, tontine.ErrEmailTaken)
	}
	if err != nil {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeCreate, err)
	}
	return mapUser(model)
}

func (store *Store) GetUser(ctx context.Context, userID tontine.UserID) (tontine.User, error) {
	var model User
	err := store.db.WithContext(ctx).Where("id = ?", userID.Int64()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, tontine.ErrUserNotFound)
		}
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return mapUser(model)
}

func (store *Store) GetUserByEmail(ctx context.Context, email string) (tontine.User, error) {
	var model User
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeLookup, tontine.ErrUserNotFound)
		}
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeLookup, err)
	}
	return mapUser(model)
}

func (store *Store) ListUsers(ctx context.Context, ids []tontine.UserID) (map[tontine.UserID]tontine.User, error) {
	users := make(map[tontine.UserID]tontine.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	rawIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		rawIDs = append(rawIDs, id.Int64())
	}
	var rows []User
	if err := store.db.WithContext(ctx).Where("id IN ?", rawIDs).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectUser, errorCodeList, err)
	}
	for _, row := range rows {
		user, err := mapUser(row)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, nil
}

func (store *Store) UpdateUserProfile(ctx context.Context, userID tontine.UserID, update tontine.ProfileUpdate, at time.Time) (tontine.User, error) {
	changes := map[string]any{"updated_at": at}
	if update.LastName != nil {
		changes["last_name"] = *update.LastName
	}
	if update.FirstName != nil {
		changes["first_name"] = *update.FirstName
	}
	if update.Email != nil {
		changes["email"] = *update.Email
	}
	if update.Phone != nil {
		changes["phone"] = *update.Phone
	}
	result := store.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID.Int64()).Updates(changes)
	if isUniqueViolation(result.Error) {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeDuplicate, tontine.ErrEmailTaken)
	}
	if result.Error != nil {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeUpdate, tontine.ErrUserNotFound)
	}
	return store.GetUser(ctx, userID)
}

func (store *Store) SetUserPremium(ctx context.Context, userID tontine.UserID, premium bool, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID.Int64()).
		Updates(map[string]any{"is_premium": premium, "updated_at": at})
	if result.Error != nil {
		return wrapStoreError(errorSubjectUser, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectUser, errorCodeUpdate, tontine.ErrUserNotFound)
	}
	return nil
}

// AdjustUserBalance applies delta in a single conditional update so the cached balance never goes negative.
func (store *Store) AdjustUserBalance(ctx context.Context, userID tontine.UserID, delta int64) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND balance + ? >= 0", userID.Int64(), delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := store.GetUser(ctx, userID); err != nil {
		return err
	}
	return wrapStoreError(errorSubjectBalance, errorCodeInvalid, tontine.ErrInvalidBalance)
}

func mapUser(row User) (tontine.User, error) {
	role, err := tontine.ParseRole(row.Role)
	if err != nil {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	balance, err := tontine.NewAmount(row.Balance)
	if err != nil {
		return tontine.User{}, wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	return tontine.User{
		ID:           tontine.UserID(row.ID),
		LastName:     row.LastName,
		FirstName:    row.FirstName,
		Email:        row.Email,
		Phone:        row.Phone,
		PasswordHash: row.PasswordHash,
		Role:         role,
		IsPremium:    row.IsPremium,
		Balance:      balance,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}
