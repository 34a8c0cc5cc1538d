package tontine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Limits caps how many groups a user may create and join.
type Limits struct {
	FreeCreations      int64
	PremiumCreations   int64
	FreeMemberships    int64
	PremiumMemberships int64
}

// DefaultLimits returns the standard free and premium quotas.
func DefaultLimits() Limits {
	return Limits{
		FreeCreations:      defaultFreeCreationLimit,
		PremiumCreations:   defaultPremiumCreationLimit,
		FreeMemberships:    defaultFreeMembershipLimit,
		PremiumMemberships: defaultPremiumMembershipLimit,
	}
}

func (limits Limits) creationLimit(premium bool) int64 {
	if premium {
		return limits.PremiumCreations
	}
	return limits.FreeCreations
}

func (limits Limits) membershipLimit(premium bool) int64 {
	if premium {
		return limits.PremiumMemberships
	}
	return limits.FreeMemberships
}

// Service contains the domain logic over a Store.
type Service struct {
	store      Store
	nowFn      func() time.Time
	logger     OperationLogger
	notifier   Notifier
	hasher     PasswordHasher
	limits     Limits
	newToken   func() string
	groupLocks *keyedMutex

	placeholderOnce sync.Once
	placeholder     string
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:      store,
		nowFn:      now,
		notifier:   NewStoreNotifier(store),
		hasher:     NewBcryptHasher(0),
		limits:     DefaultLimits(),
		newToken:   uuid.NewString,
		groupLocks: newKeyedMutex(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.notifier == nil {
		return nil, fmt.Errorf("%w: notifier dependency is nil", ErrInvalidServiceConfig)
	}
	if service.hasher == nil {
		return nil, fmt.Errorf("%w: password hasher dependency is nil", ErrInvalidServiceConfig)
	}
	if service.newToken == nil {
		return nil, fmt.Errorf("%w: token generator is nil", ErrInvalidServiceConfig)
	}
	return service, nil
}

// placeholderHash is a hash of a random secret, built once with the configured hasher.
func (service *Service) placeholderHash() string {
	service.placeholderOnce.Do(func() {
		hash, err := service.hasher.Hash(service.newToken())
		if err == nil {
			service.placeholder = hash
		}
	})
	return service.placeholder
}

func (service *Service) now() time.Time {
	return service.nowFn().UTC()
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// notify delivers a notification on the side channel. Failures are logged and never returned.
func (service *Service) notify(ctx context.Context, userID UserID, title string, body string, details map[string]any) {
	metadata, err := MarshalMetadata(details)
	if err != nil {
		metadata = MetadataJSON{}
	}
	notification := Notification{
		UserID:    userID,
		Title:     title,
		Body:      body,
		Metadata:  metadata,
		CreatedAt: service.now(),
	}
	if notifyErr := service.notifier.Notify(context.WithoutCancel(ctx), notification); notifyErr != nil {
		service.logOperation(ctx, OperationLog{
			Operation: operationNotify,
			TargetID:  userID,
			Error:     notifyErr,
		})
	}
}

// loadGroup reads a group and checks it is of the kind the caller addressed.
func loadGroup(ctx context.Context, store GroupStore, ref GroupRef) (Group, error) {
	group, err := store.GetGroup(ctx, ref.ID)
	if err != nil {
		return Group{}, err
	}
	if ref.Kind != "" && group.Kind != ref.Kind {
		return Group{}, fmt.Errorf("%w: %s %d", ErrGroupNotFound, ref.Kind, ref.ID)
	}
	return group, nil
}

func lockGroup(ctx context.Context, store GroupStore, ref GroupRef) (Group, error) {
	group, err := store.LockGroup(ctx, ref.ID)
	if err != nil {
		return Group{}, err
	}
	if ref.Kind != "" && group.Kind != ref.Kind {
		return Group{}, fmt.Errorf("%w: %s %d", ErrGroupNotFound, ref.Kind, ref.ID)
	}
	return group, nil
}

func requireOwner(group Group, userID UserID) error {
	if group.OwnerID != userID {
		return fmt.Errorf("%w: group %d", ErrNotOwner, group.ID)
	}
	return nil
}

func (service *Service) loadOwnedGroup(ctx context.Context, store GroupStore, ownerID UserID, ref GroupRef) (Group, error) {
	group, err := loadGroup(ctx, store, ref)
	if err != nil {
		return Group{}, err
	}
	if err := requireOwner(group, ownerID); err != nil {
		return Group{}, err
	}
	return group, nil
}

func (service *Service) checkMembershipLimit(ctx context.Context, store Store, user User) error {
	joined, err := store.CountMemberships(ctx, user.ID)
	if err != nil {
		return err
	}
	if joined >= service.limits.membershipLimit(user.IsPremium) {
		return fmt.Errorf("%w: %d groups joined", ErrIntegrationLimitReached, joined)
	}
	return nil
}

func isMissingParticipant(err error) bool {
	return errors.Is(err, ErrParticipantNotFound)
}

type keyedMutex struct {
	mutex   sync.Mutex
	entries map[GroupID]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mutex      sync.Mutex
	references int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[GroupID]*keyedMutexEntry)}
}

// lock blocks until the group is free and returns the matching unlock.
func (locks *keyedMutex) lock(groupID GroupID) func() {
	locks.mutex.Lock()
	entry, ok := locks.entries[groupID]
	if !ok {
		entry = &keyedMutexEntry{}
		locks.entries[groupID] = entry
	}
	entry.references++
	locks.mutex.Unlock()

	entry.mutex.Lock()
	return func() {
		entry.mutex.Unlock()
		locks.mutex.Lock()
		entry.references--
		if entry.references == 0 {
			delete(locks.entries, groupID)
		}
		locks.mutex.Unlock()
	}
}
