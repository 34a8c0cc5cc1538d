package tontine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// stubStore is an in-memory Store. Transactions are serialized and roll back on error.
// Methods the tests never reach fall through to the embedded nil interface.
type stubStore struct {
	Store

	txMutex   sync.Mutex
	dataMutex sync.Mutex
	state     stubState

	insertPaymentErr error
}

type stubState struct {
	nextID        int64
	users         map[UserID]User
	groups        map[GroupID]Group
	participants  map[participantKey]Participant
	payments      []Payment
	distributions []Distribution
	requests      map[RequestID]ParticipationRequest
	messages      map[MessageID]Message
	notifications []Notification
	activities    []Activity
}

type participantKey struct {
	groupID GroupID
	userID  UserID
}

func newStubStore() *stubStore {
	return &stubStore{state: stubState{
		users:        make(map[UserID]User),
		groups:       make(map[GroupID]Group),
		participants: make(map[participantKey]Participant),
		requests:     make(map[RequestID]ParticipationRequest),
		messages:     make(map[MessageID]Message),
	}}
}

func (state stubState) clone() stubState {
	cloned := stubState{
		nextID:        state.nextID,
		users:         make(map[UserID]User, len(state.users)),
		groups:        make(map[GroupID]Group, len(state.groups)),
		participants:  make(map[participantKey]Participant, len(state.participants)),
		payments:      append([]Payment(nil), state.payments...),
		distributions: append([]Distribution(nil), state.distributions...),
		requests:      make(map[RequestID]ParticipationRequest, len(state.requests)),
		messages:      make(map[MessageID]Message, len(state.messages)),
		notifications: append([]Notification(nil), state.notifications...),
		activities:    append([]Activity(nil), state.activities...),
	}
	for key, value := range state.users {
		cloned.users[key] = value
	}
	for key, value := range state.groups {
		cloned.groups[key] = value
	}
	for key, value := range state.participants {
		cloned.participants[key] = value
	}
	for key, value := range state.requests {
		cloned.requests[key] = value
	}
	for key, value := range state.messages {
		cloned.messages[key] = value
	}
	return cloned
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMutex.Lock()
	defer store.txMutex.Unlock()
	store.dataMutex.Lock()
	snapshot := store.state.clone()
	store.dataMutex.Unlock()
	if err := fn(ctx, store); err != nil {
		store.dataMutex.Lock()
		store.state = snapshot
		store.dataMutex.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) newID() int64 {
	store.state.nextID++
	return store.state.nextID
}

func (store *stubStore) CreateUser(_ context.Context, user User) (User, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, existing := range store.state.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	user.ID = UserID(store.newID())
	store.state.users[user.ID] = user
	return user, nil
}

func (store *stubStore) GetUser(_ context.Context, userID UserID) (User, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	user, ok := store.state.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (store *stubStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, user := range store.state.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (store *stubStore) ListUsers(_ context.Context, userIDs []UserID) (map[UserID]User, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	users := make(map[UserID]User, len(userIDs))
	for _, userID := range userIDs {
		if user, ok := store.state.users[userID]; ok {
			users[userID] = user
		}
	}
	return users, nil
}

func (store *stubStore) SetUserPremium(_ context.Context, userID UserID, premium bool, at time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	user, ok := store.state.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.IsPremium = premium
	user.UpdatedAt = at
	store.state.users[userID] = user
	return nil
}

func (store *stubStore) AdjustUserBalance(_ context.Context, userID UserID, delta int64) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	user, ok := store.state.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if user.Balance.Int64()+delta < 0 {
		return ErrInvalidBalance
	}
	user.Balance += Amount(delta)
	store.state.users[userID] = user
	return nil
}

func (store *stubStore) CreateGroup(_ context.Context, group Group) (Group, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	group.ID = GroupID(store.newID())
	store.state.groups[group.ID] = group
	return group, nil
}

func (store *stubStore) GetGroup(_ context.Context, groupID GroupID) (Group, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	group, ok := store.state.groups[groupID]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return group, nil
}

func (store *stubStore) LockGroup(ctx context.Context, groupID GroupID) (Group, error) {
	return store.GetGroup(ctx, groupID)
}

func (store *stubStore) GetGroupByToken(_ context.Context, token string) (Group, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, group := range store.state.groups {
		if group.AccessToken == token {
			return group, nil
		}
	}
	return Group{}, ErrGroupNotFound
}

func (store *stubStore) DeleteGroup(_ context.Context, groupID GroupID) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	delete(store.state.groups, groupID)
	for key := range store.state.participants {
		if key.groupID == groupID {
			delete(store.state.participants, key)
		}
	}
	return nil
}

func (store *stubStore) ListGroups(_ context.Context, filter GroupFilter) ([]Group, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	groups := make([]Group, 0)
	for _, group := range store.state.groups {
		if filter.OwnerID != nil && group.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Kind != "" && group.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && group.Status != filter.Status {
			continue
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(left, right int) bool { return groups[left].ID > groups[right].ID })
	return groups, nil
}

func (store *stubStore) CountGroupsByOwner(ctx context.Context, ownerID UserID) (int64, error) {
	groups, err := store.ListGroups(ctx, GroupFilter{OwnerID: &ownerID})
	return int64(len(groups)), err
}

func (store *stubStore) AddParticipant(_ context.Context, participant Participant) (Participant, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	key := participantKey{groupID: participant.GroupID, userID: participant.UserID}
	if _, ok := store.state.participants[key]; ok {
		return Participant{}, ErrAlreadyParticipant
	}
	store.state.participants[key] = participant
	return participant, nil
}

func (store *stubStore) GetParticipant(_ context.Context, groupID GroupID, userID UserID) (Participant, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	participant, ok := store.state.participants[participantKey{groupID: groupID, userID: userID}]
	if !ok {
		return Participant{}, ErrParticipantNotFound
	}
	return participant, nil
}

func (store *stubStore) RemoveParticipant(_ context.Context, groupID GroupID, userID UserID) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	key := participantKey{groupID: groupID, userID: userID}
	if _, ok := store.state.participants[key]; !ok {
		return ErrParticipantNotFound
	}
	delete(store.state.participants, key)
	return nil
}

func (store *stubStore) ListParticipants(_ context.Context, groupID GroupID) ([]Participant, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	participants := make([]Participant, 0)
	for key, participant := range store.state.participants {
		if key.groupID == groupID {
			participants = append(participants, participant)
		}
	}
	sort.Slice(participants, func(left, right int) bool { return participants[left].UserID < participants[right].UserID })
	return participants, nil
}

func (store *stubStore) ListMemberships(_ context.Context, userID UserID) ([]Membership, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	memberships := make([]Membership, 0)
	for key, participant := range store.state.participants {
		if key.userID == userID {
			memberships = append(memberships, Membership{Group: store.state.groups[key.groupID], Participant: participant})
		}
	}
	return memberships, nil
}

func (store *stubStore) CountMemberships(ctx context.Context, userID UserID) (int64, error) {
	memberships, err := store.ListMemberships(ctx, userID)
	return int64(len(memberships)), err
}

func (store *stubStore) CompletePayment(_ context.Context, groupID GroupID, userID UserID, at time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	key := participantKey{groupID: groupID, userID: userID}
	participant, ok := store.state.participants[key]
	if !ok || participant.PaymentStatus != PaymentStatusPending {
		return ErrAlreadyPaid
	}
	participant.PaymentStatus = PaymentStatusCompleted
	participant.PaymentDate = &at
	store.state.participants[key] = participant
	return nil
}

func (store *stubStore) ResetPayment(_ context.Context, groupID GroupID, userID UserID) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	key := participantKey{groupID: groupID, userID: userID}
	participant, ok := store.state.participants[key]
	if !ok {
		return ErrParticipantNotFound
	}
	participant.PaymentStatus = PaymentStatusPending
	participant.PaymentDate = nil
	store.state.participants[key] = participant
	return nil
}

func (store *stubStore) MarkFundsReceived(_ context.Context, groupID GroupID, userID UserID, at time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	key := participantKey{groupID: groupID, userID: userID}
	participant, ok := store.state.participants[key]
	if !ok {
		return ErrParticipantNotFound
	}
	participant.FundsReceived = true
	participant.FundReceiptDate = &at
	store.state.participants[key] = participant
	return nil
}

func (store *stubStore) InsertPayment(_ context.Context, payment Payment) (Payment, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	if store.insertPaymentErr != nil {
		return Payment{}, store.insertPaymentErr
	}
	payment.ID = store.newID()
	store.state.payments = append(store.state.payments, payment)
	return payment, nil
}

func (store *stubStore) InsertDistribution(_ context.Context, distribution Distribution) (Distribution, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	distribution.ID = store.newID()
	store.state.distributions = append(store.state.distributions, distribution)
	return distribution, nil
}

func matchesLedger(filter LedgerFilter, groupID GroupID, userID UserID) bool {
	if filter.GroupID != nil && *filter.GroupID != groupID {
		return false
	}
	if filter.UserID != nil && *filter.UserID != userID {
		return false
	}
	return true
}

func (store *stubStore) SumPayments(_ context.Context, filter LedgerFilter) (Amount, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	total := Amount(0)
	for _, payment := range store.state.payments {
		if payment.Status == PaymentStatusCompleted && matchesLedger(filter, payment.GroupID, payment.UserID) {
			total += payment.Amount.ToAmount()
		}
	}
	return total, nil
}

func (store *stubStore) SumDistributions(_ context.Context, filter LedgerFilter) (Amount, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	total := Amount(0)
	for _, distribution := range store.state.distributions {
		if matchesLedger(filter, distribution.GroupID, distribution.UserID) {
			total += distribution.Amount.ToAmount()
		}
	}
	return total, nil
}

func (store *stubStore) CountPayments(ctx context.Context, filter LedgerFilter) (int64, error) {
	payments, err := store.ListPayments(ctx, filter)
	return int64(len(payments)), err
}

func (store *stubStore) ListPayments(_ context.Context, filter LedgerFilter) ([]Payment, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	payments := make([]Payment, 0)
	for _, payment := range store.state.payments {
		if matchesLedger(filter, payment.GroupID, payment.UserID) {
			payments = append(payments, payment)
		}
	}
	return payments, nil
}

func (store *stubStore) ListDistributions(_ context.Context, filter LedgerFilter) ([]Distribution, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	distributions := make([]Distribution, 0)
	for _, distribution := range store.state.distributions {
		if matchesLedger(filter, distribution.GroupID, distribution.UserID) {
			distributions = append(distributions, distribution)
		}
	}
	return distributions, nil
}

func (store *stubStore) CreateRequest(_ context.Context, request ParticipationRequest) (ParticipationRequest, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, existing := range store.state.requests {
		if existing.GroupID == request.GroupID && existing.UserID == request.UserID && existing.Status == RequestStatusPending {
			return ParticipationRequest{}, ErrRequestPending
		}
	}
	request.ID = RequestID(store.newID())
	store.state.requests[request.ID] = request
	return request, nil
}

func (store *stubStore) GetRequest(_ context.Context, requestID RequestID) (ParticipationRequest, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	request, ok := store.state.requests[requestID]
	if !ok {
		return ParticipationRequest{}, ErrRequestNotFound
	}
	return request, nil
}

func (store *stubStore) HasPendingRequest(_ context.Context, groupID GroupID, userID UserID) (bool, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	for _, request := range store.state.requests {
		if request.GroupID == groupID && request.UserID == userID && request.Status == RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) ResolveRequest(_ context.Context, requestID RequestID, status RequestStatus, at time.Time) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	request, ok := store.state.requests[requestID]
	if !ok || request.Status != RequestStatusPending {
		return ErrRequestResolved
	}
	request.Status = status
	request.UpdatedAt = at
	store.state.requests[requestID] = request
	return nil
}

func (store *stubStore) CountPendingRequests(_ context.Context, ownerID UserID) (int64, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	count := int64(0)
	for _, request := range store.state.requests {
		if request.Status == RequestStatusPending && store.state.groups[request.GroupID].OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) InsertMessage(_ context.Context, message Message) (Message, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	message.ID = MessageID(store.newID())
	store.state.messages[message.ID] = message
	return message, nil
}

func (store *stubStore) ListLatestMessages(_ context.Context, userID UserID, limit int) ([]Message, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	latest := make(map[UserID]Message)
	for _, message := range store.state.messages {
		if message.SenderID != userID && message.ReceiverID != userID {
			continue
		}
		counterpart := message.Counterpart(userID)
		if current, ok := latest[counterpart]; !ok || message.ID > current.ID {
			latest[counterpart] = message
		}
	}
	messages := make([]Message, 0, len(latest))
	for _, message := range latest {
		messages = append(messages, message)
	}
	sort.Slice(messages, func(left, right int) bool { return messages[left].ID > messages[right].ID })
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (store *stubStore) CountUnreadBySender(_ context.Context, userID UserID) (map[UserID]int, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	counts := make(map[UserID]int)
	for _, message := range store.state.messages {
		if message.ReceiverID == userID && !message.IsRead {
			counts[message.SenderID]++
		}
	}
	return counts, nil
}

func (store *stubStore) InsertNotification(_ context.Context, notification Notification) (Notification, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	notification.ID = NotificationID(store.newID())
	store.state.notifications = append(store.state.notifications, notification)
	return notification, nil
}

func (store *stubStore) notificationsFor(userID UserID) []Notification {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	notifications := make([]Notification, 0)
	for _, notification := range store.state.notifications {
		if notification.UserID == userID {
			notifications = append(notifications, notification)
		}
	}
	return notifications
}

func (store *stubStore) participant(test *testing.T, groupID GroupID, userID UserID) Participant {
	test.Helper()
	participant, err := store.GetParticipant(context.Background(), groupID, userID)
	if err != nil {
		test.Fatalf("participant %d/%d: %v", groupID, userID, err)
	}
	return participant
}

func (store *stubStore) user(test *testing.T, userID UserID) User {
	test.Helper()
	user, err := store.GetUser(context.Background(), userID)
	if err != nil {
		test.Fatalf("user %d: %v", userID, err)
	}
	return user
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash string, password string) error {
	if hash != "hashed:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	counter := 0
	var counterMutex sync.Mutex
	base := []ServiceOption{
		WithPasswordHasher(plainHasher{}),
		WithTokenGenerator(func() string {
			counterMutex.Lock()
			defer counterMutex.Unlock()
			counter++
			return fmt.Sprintf("token-%d", counter)
		}),
	}
	service, err := NewService(store, func() time.Time { return fixedNow }, append(base, options...)...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustRegister(test *testing.T, service *Service, email string, role Role) User {
	test.Helper()
	registration, err := NewRegistration("Diop", "Awa", email, "secret-pass", "", string(role))
	if err != nil {
		test.Fatalf("registration: %v", err)
	}
	user, err := service.Register(context.Background(), registration)
	if err != nil {
		test.Fatalf("register %s: %v", email, err)
	}
	return user
}

func mustCreateGroup(test *testing.T, service *Service, ownerID UserID, kind GroupKind, bareme Amount) Group {
	test.Helper()
	group, err := service.CreateGroup(context.Background(), ownerID, kind, GroupDraft{Name: "Weekly savings", Bareme: bareme})
	if err != nil {
		test.Fatalf("create group: %v", err)
	}
	return group
}

func mustJoin(test *testing.T, service *Service, userID UserID, group Group) {
	test.Helper()
	if _, err := service.JoinByToken(context.Background(), userID, group.Kind, group.AccessToken); err != nil {
		test.Fatalf("join group %d: %v", group.ID, err)
	}
}

func mustPositiveAmount(test *testing.T, raw int64) PositiveAmount {
	test.Helper()
	value, err := NewPositiveAmount(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return value
}

func expectError(test *testing.T, err error, target error) {
	test.Helper()
	if !errors.Is(err, target) {
		test.Fatalf("expected %v, got %v", target, err)
	}
}

func (store *stubStore) InsertActivity(_ context.Context, activity Activity) error {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	activity.ID = store.newID()
	store.state.activities = append(store.state.activities, activity)
	return nil
}

func (store *stubStore) ListActivities(_ context.Context, filter ActivityFilter) ([]Activity, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	activities := make([]Activity, 0)
	for _, activity := range store.state.activities {
		if filter.UserID != nil && activity.UserID != *filter.UserID {
			continue
		}
		if filter.Type != "" && activity.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && activity.CreatedAt.Before(filter.Since) {
			continue
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

func (store *stubStore) CountActivities(ctx context.Context, filter ActivityFilter) (int64, error) {
	activities, err := store.ListActivities(ctx, filter)
	return int64(len(activities)), err
}

func (store *stubStore) CountMessagesSent(_ context.Context, userID UserID) (int64, error) {
	store.dataMutex.Lock()
	defer store.dataMutex.Unlock()
	count := int64(0)
	for _, message := range store.state.messages {
		if message.SenderID == userID {
			count++
		}
	}
	return count, nil
}
