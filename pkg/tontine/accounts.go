package tontine

import (
	"context"
	"errors"
)

// Register creates a new account. A duplicate email yields ErrEmailTaken.
func (service *Service) Register(ctx context.Context, registration Registration) (User, error) {
	if _, err := service.store.GetUserByEmail(ctx, registration.Email); err == nil {
		service.logOperation(ctx, OperationLog{Operation: operationRegister, Error: ErrEmailTaken})
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	passwordHash, err := service.hasher.Hash(registration.Password)
	if err != nil {
		return User{}, err
	}
	now := service.now()
	user, err := service.store.CreateUser(ctx, User{
		LastName:     registration.LastName,
		FirstName:    registration.FirstName,
		Email:        registration.Email,
		Phone:        registration.Phone,
		PasswordHash: passwordHash,
		Role:         registration.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRegister,
		UserID:    user.ID,
		Error:     err,
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate checks an email and password pair. Every mismatch yields ErrInvalidCredentials.
func (service *Service) Authenticate(ctx context.Context, email string, password string) (User, error) {
	normalizedEmail, err := NormalizeEmail(email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	user, err := service.store.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Unknown emails still pay for a hash comparison.
			_ = service.hasher.Compare(service.placeholderHash(), password)
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := service.hasher.Compare(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the caller's account.
func (service *Service) Profile(ctx context.Context, userID UserID) (User, error) {
	return service.store.GetUser(ctx, userID)
}

// UpdateProfile changes names, phone or email. A taken email yields ErrEmailTaken.
func (service *Service) UpdateProfile(ctx context.Context, userID UserID, update ProfileUpdate) (User, error) {
	normalized, err := update.normalized()
	if err != nil {
		return User{}, err
	}
	var updated User
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if normalized.Email != nil && *normalized.Email != current.Email {
			existing, err := transactionStore.GetUserByEmail(ctx, *normalized.Email)
			if err == nil && existing.ID != userID {
				return ErrEmailTaken
			}
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return err
			}
		}
		updated, err = transactionStore.UpdateUserProfile(ctx, userID, normalized, service.now())
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateProfile,
		UserID:    userID,
		Error:     operationError,
	})
	if operationError != nil {
		return User{}, operationError
	}
	return updated, nil
}

// SubscribePremium upgrades the caller to the premium quotas.
func (service *Service) SubscribePremium(ctx context.Context, userID UserID) (User, error) {
	var user User
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := transactionStore.SetUserPremium(ctx, userID, true, service.now()); err != nil {
			return err
		}
		var err error
		user, err = transactionStore.GetUser(ctx, userID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSubscribe,
		UserID:    userID,
		Error:     operationError,
	})
	if operationError != nil {
		return User{}, operationError
	}
	service.notify(ctx, userID, "Premium activated", "Your account now has the premium limits.", map[string]any{
		"type": "premium_subscription",
	})
	return user, nil
}
