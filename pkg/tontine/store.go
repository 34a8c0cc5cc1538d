package tontine

import (
	"context"
	"time"
)

// Store is the persistence contract used by Service.
// gormstore implements it over PostgreSQL and SQLite.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	UserStore
	GroupStore
	ParticipantStore
	LedgerStore
	RequestStore
	MessageStore
	NotificationStore
	ActivityStore
}

// UserStore persists accounts.
type UserStore interface {
	// CreateUser returns ErrEmailTaken when the email is already registered.
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, userID UserID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, userIDs []UserID) (map[UserID]User, error)
	UpdateUserProfile(ctx context.Context, userID UserID, update ProfileUpdate, at time.Time) (User, error)
	SetUserPremium(ctx context.Context, userID UserID, premium bool, at time.Time) error
	// AdjustUserBalance adds delta to the cached balance and refuses to take it below zero.
	AdjustUserBalance(ctx context.Context, userID UserID, delta int64) error
}

// GroupStore persists tontines and corridors.
type GroupStore interface {
	CreateGroup(ctx context.Context, group Group) (Group, error)
	GetGroup(ctx context.Context, groupID GroupID) (Group, error)
	// LockGroup reads the group and holds a row lock until the transaction ends.
	LockGroup(ctx context.Context, groupID GroupID) (Group, error)
	GetGroupByToken(ctx context.Context, token string) (Group, error)
	UpdateGroup(ctx context.Context, group Group) (Group, error)
	// DeleteGroup removes the group with its participants and requests. Ledger rows are kept.
	DeleteGroup(ctx context.Context, groupID GroupID) error
	ListGroups(ctx context.Context, filter GroupFilter) ([]Group, error)
	CountGroupsByOwner(ctx context.Context, ownerID UserID) (int64, error)
}

// ParticipantStore persists group memberships.
type ParticipantStore interface {
	// AddParticipant returns ErrAlreadyParticipant when the pair already exists.
	AddParticipant(ctx context.Context, participant Participant) (Participant, error)
	GetParticipant(ctx context.Context, groupID GroupID, userID UserID) (Participant, error)
	RemoveParticipant(ctx context.Context, groupID GroupID, userID UserID) error
	ListParticipants(ctx context.Context, groupID GroupID) ([]Participant, error)
	ListMemberships(ctx context.Context, userID UserID) ([]Membership, error)
	CountMemberships(ctx context.Context, userID UserID) (int64, error)
	// CompletePayment flips a pending participant to completed; a participant that
	// is not pending yields ErrAlreadyPaid.
	CompletePayment(ctx context.Context, groupID GroupID, userID UserID, at time.Time) error
	ResetPayment(ctx context.Context, groupID GroupID, userID UserID) error
	MarkFundsReceived(ctx context.Context, groupID GroupID, userID UserID, at time.Time) error
}

// LedgerStore persists the append-only payment and distribution records.
type LedgerStore interface {
	InsertPayment(ctx context.Context, payment Payment) (Payment, error)
	InsertDistribution(ctx context.Context, distribution Distribution) (Distribution, error)
	// SumPayments totals completed payments matching the filter.
	SumPayments(ctx context.Context, filter LedgerFilter) (Amount, error)
	SumDistributions(ctx context.Context, filter LedgerFilter) (Amount, error)
	CountPayments(ctx context.Context, filter LedgerFilter) (int64, error)
	ListPayments(ctx context.Context, filter LedgerFilter) ([]Payment, error)
	ListDistributions(ctx context.Context, filter LedgerFilter) ([]Distribution, error)
}

// RequestStore persists participation requests.
type RequestStore interface {
	// CreateRequest returns ErrRequestPending when a pending request exists for the pair.
	CreateRequest(ctx context.Context, request ParticipationRequest) (ParticipationRequest, error)
	GetRequest(ctx context.Context, requestID RequestID) (ParticipationRequest, error)
	HasPendingRequest(ctx context.Context, groupID GroupID, userID UserID) (bool, error)
	// ResolveRequest moves a pending request to status; a request that is no
	// longer pending yields ErrRequestResolved.
	ResolveRequest(ctx context.Context, requestID RequestID, status RequestStatus, at time.Time) error
	ListPendingRequests(ctx context.Context, ownerID UserID) ([]ParticipationRequest, error)
	CountPendingRequests(ctx context.Context, ownerID UserID) (int64, error)
}

// MessageStore persists direct messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, message Message) (Message, error)
	GetMessage(ctx context.Context, messageID MessageID) (Message, error)
	// ListConversation returns messages between the pair, oldest first.
	ListConversation(ctx context.Context, userID UserID, otherID UserID, groupID *GroupID) ([]Message, error)
	// ListLatestMessages returns the newest message exchanged with each counterpart, newest first.
	ListLatestMessages(ctx context.Context, userID UserID, limit int) ([]Message, error)
	// CountUnreadBySender counts the user's unread received messages per sender.
	CountUnreadBySender(ctx context.Context, userID UserID) (map[UserID]int, error)
	ListUnreadMessages(ctx context.Context, userID UserID) ([]Message, error)
	MarkMessagesRead(ctx context.Context, receiverID UserID, filter ReadFilter, at time.Time) (int64, error)
	DeleteMessage(ctx context.Context, messageID MessageID) error
	DeleteConversation(ctx context.Context, userID UserID, otherID UserID) (int64, error)
	DeleteMessagesForUser(ctx context.Context, userID UserID) (int64, error)
	CountMessagesSent(ctx context.Context, userID UserID) (int64, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, notification Notification) (Notification, error)
	ListNotifications(ctx context.Context, userID UserID, limit int) ([]Notification, error)
	DeleteNotification(ctx context.Context, userID UserID, notificationID NotificationID) error
	ClearNotifications(ctx context.Context, userID UserID) (int64, error)
}

// ActivityStore persists the user activity log.
type ActivityStore interface {
	InsertActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error)
	CountActivities(ctx context.Context, filter ActivityFilter) (int64, error)
}

// GroupFilter narrows ListGroups. Zero values match everything.
type GroupFilter struct {
	OwnerID *UserID
	Kind    GroupKind
	Status  GroupStatus
}

// LedgerFilter narrows ledger queries. Nil fields match everything.
type LedgerFilter struct {
	GroupID *GroupID
	UserID  *UserID
}

// ReadFilter selects messages to mark as read. MessageIDs wins when both are set.
type ReadFilter struct {
	MessageIDs []MessageID
	SenderID   *UserID
}

// ActivityFilter narrows activity queries. Zero values match everything.
type ActivityFilter struct {
	UserID *UserID
	Type   string
	Since  time.Time
}
