package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var storeNow = time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)

func openSQLiteStore(test *testing.T) *gorm.DB {
	test.Helper()
	path := filepath.Join(test.TempDir(), "tontine.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	require.NoError(test, err)
	sqlDB, err := db.DB()
	require.NoError(test, err)
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(test, AutoMigrate(context.Background(), db))
	return db
}

func TestSQLiteStoreContract(test *testing.T) {
	test.Parallel()
	runStoreContract(test, openSQLiteStore(test))
}

func TestSQLiteServiceScenario(test *testing.T) {
	test.Parallel()
	runServiceScenario(test, openSQLiteStore(test))
}

// runStoreContract checks the conditional writes the service relies on.
func runStoreContract(test *testing.T, db *gorm.DB) {
	ctx := context.Background()
	store := New(db)

	organizer := mustCreateUser(test, store, "organizer@example.com", tontine.RoleOrganizer)
	member := mustCreateUser(test, store, "member@example.com", tontine.RoleParticipant)

	_, err := store.CreateUser(ctx, tontine.User{Email: "organizer@example.com", LastName: "Dup", FirstName: "Dup", Role: tontine.RoleParticipant, PasswordHash: "x", CreatedAt: storeNow, UpdatedAt: storeNow})
	require.ErrorIs(test, err, tontine.ErrEmailTaken)

	group, err := store.CreateGroup(ctx, tontine.Group{
		Kind:        tontine.GroupKindTontine,
		OwnerID:     organizer.ID,
		Name:        "Market women",
		Bareme:      5000,
		AccessToken: "token-contract",
		Status:      tontine.GroupStatusActive,
		CreatedAt:   storeNow,
		UpdatedAt:   storeNow,
	})
	require.NoError(test, err)
	byToken, err := store.GetGroupByToken(ctx, "token-contract")
	require.NoError(test, err)
	require.Equal(test, group.ID, byToken.ID)
	_, err = store.GetGroup(ctx, group.ID+100)
	require.ErrorIs(test, err, tontine.ErrGroupNotFound)

	_, err = store.AddParticipant(ctx, tontine.Participant{GroupID: group.ID, UserID: member.ID, PaymentStatus: tontine.PaymentStatusPending, JoinedAt: storeNow})
	require.NoError(test, err)
	_, err = store.GetParticipant(ctx, group.ID, organizer.ID)
	require.ErrorIs(test, err, tontine.ErrParticipantNotFound)

	participants, err := store.ListParticipants(ctx, group.ID)
	require.NoError(test, err)
	require.Len(test, participants, 1)
	require.Equal(test, "member@example.com", participants[0].User.Email)

	require.NoError(test, store.CompletePayment(ctx, group.ID, member.ID, storeNow))
	require.ErrorIs(test, store.CompletePayment(ctx, group.ID, member.ID, storeNow), tontine.ErrAlreadyPaid)

	_, err = store.InsertPayment(ctx, tontine.Payment{GroupID: group.ID, UserID: member.ID, Amount: 5000, Status: tontine.PaymentStatusCompleted, Method: tontine.PaymentMethodSimulation, TransactionID: "sim_1", PaidTo: organizer.ID, PaidAt: storeNow})
	require.NoError(test, err)
	_, err = store.InsertDistribution(ctx, tontine.Distribution{GroupID: group.ID, UserID: member.ID, Amount: 3000, DistributedBy: organizer.ID, DistributedAt: storeNow})
	require.NoError(test, err)

	groupFilter := tontine.LedgerFilter{GroupID: &group.ID}
	collected, err := store.SumPayments(ctx, groupFilter)
	require.NoError(test, err)
	require.Equal(test, tontine.Amount(5000), collected)
	distributed, err := store.SumDistributions(ctx, groupFilter)
	require.NoError(test, err)
	require.Equal(test, tontine.Amount(3000), distributed)

	require.NoError(test, store.AdjustUserBalance(ctx, organizer.ID, 2000))
	require.ErrorIs(test, store.AdjustUserBalance(ctx, organizer.ID, -2001), tontine.ErrInvalidBalance)
	require.ErrorIs(test, store.AdjustUserBalance(ctx, 9999, 1), tontine.ErrUserNotFound)
	reloaded, err := store.GetUser(ctx, organizer.ID)
	require.NoError(test, err)
	require.Equal(test, tontine.Amount(2000), reloaded.Balance)

	outsider := mustCreateUser(test, store, "outsider@example.com", tontine.RoleParticipant)
	request, err := store.CreateRequest(ctx, tontine.ParticipationRequest{GroupID: group.ID, UserID: outsider.ID, Status: tontine.RequestStatusPending, CreatedAt: storeNow, UpdatedAt: storeNow})
	require.NoError(test, err)
	pending, err := store.ListPendingRequests(ctx, organizer.ID)
	require.NoError(test, err)
	require.Len(test, pending, 1)
	require.Equal(test, "Market women", pending[0].Group.Name)
	require.Equal(test, "outsider@example.com", pending[0].Requester.Email)

	require.NoError(test, store.ResolveRequest(ctx, request.ID, tontine.RequestStatusRejected, storeNow))
	require.ErrorIs(test, store.ResolveRequest(ctx, request.ID, tontine.RequestStatusAccepted, storeNow), tontine.ErrRequestResolved)
	count, err := store.CountPendingRequests(ctx, organizer.ID)
	require.NoError(test, err)
	require.Zero(test, count)

	// A rejected request leaves room for a new pending one.
	_, err = store.CreateRequest(ctx, tontine.ParticipationRequest{GroupID: group.ID, UserID: outsider.ID, Status: tontine.RequestStatusPending, CreatedAt: storeNow, UpdatedAt: storeNow})
	require.NoError(test, err)
	latecomer := mustCreateUser(test, store, "latecomer@example.com", tontine.RoleParticipant)
	_, err = store.CreateRequest(ctx, tontine.ParticipationRequest{GroupID: group.ID, UserID: latecomer.ID, Status: tontine.RequestStatusPending, CreatedAt: storeNow.Add(time.Hour), UpdatedAt: storeNow.Add(time.Hour)})
	require.NoError(test, err)
	pending, err = store.ListPendingRequests(ctx, organizer.ID)
	require.NoError(test, err)
	require.Len(test, pending, 2)
	require.Equal(test, "latecomer@example.com", pending[0].Requester.Email)
	require.Equal(test, "outsider@example.com", pending[1].Requester.Email)

	groupID := group.ID
	_, err = store.InsertMessage(ctx, tontine.Message{SenderID: member.ID, ReceiverID: organizer.ID, GroupID: &groupID, Content: "paid", CreatedAt: storeNow})
	require.NoError(test, err)
	_, err = store.InsertMessage(ctx, tontine.Message{SenderID: organizer.ID, ReceiverID: member.ID, Content: "thanks", CreatedAt: storeNow.Add(time.Minute)})
	require.NoError(test, err)
	thread, err := store.ListConversation(ctx, organizer.ID, member.ID, nil)
	require.NoError(test, err)
	require.Len(test, thread, 2)
	require.Equal(test, "paid", thread[0].Content)
	scoped, err := store.ListConversation(ctx, organizer.ID, member.ID, &groupID)
	require.NoError(test, err)
	require.Len(test, scoped, 1)
	read, err := store.MarkMessagesRead(ctx, organizer.ID, tontine.ReadFilter{SenderID: &member.ID}, storeNow)
	require.NoError(test, err)
	require.Equal(test, int64(1), read)
	unread, err := store.ListUnreadMessages(ctx, organizer.ID)
	require.NoError(test, err)
	require.Empty(test, unread)

	for _, content := range []string{"hello", "are you there"} {
		_, err = store.InsertMessage(ctx, tontine.Message{SenderID: outsider.ID, ReceiverID: organizer.ID, Content: content, CreatedAt: storeNow.Add(2 * time.Minute)})
		require.NoError(test, err)
	}
	heads, err := store.ListLatestMessages(ctx, organizer.ID, 0)
	require.NoError(test, err)
	require.Len(test, heads, 2)
	require.Equal(test, "are you there", heads[0].Content)
	require.Equal(test, "thanks", heads[1].Content)
	limited, err := store.ListLatestMessages(ctx, organizer.ID, 1)
	require.NoError(test, err)
	require.Len(test, limited, 1)
	require.Equal(test, outsider.ID, limited[0].Counterpart(organizer.ID))
	unreadBySender, err := store.CountUnreadBySender(ctx, organizer.ID)
	require.NoError(test, err)
	require.Equal(test, map[tontine.UserID]int{outsider.ID: 2}, unreadBySender)

	metadata, err := tontine.NewMetadataJSON(`{"type":"payment_received"}`)
	require.NoError(test, err)
	notification, err := store.InsertNotification(ctx, tontine.Notification{UserID: organizer.ID, Title: "Payment received", Body: "5000 XOF", Metadata: metadata, CreatedAt: storeNow})
	require.NoError(test, err)
	require.JSONEq(test, `{"type":"payment_received"}`, notification.Metadata.String())
	require.ErrorIs(test, store.DeleteNotification(ctx, member.ID, notification.ID), tontine.ErrNotificationNotFound)
	require.NoError(test, store.DeleteNotification(ctx, organizer.ID, notification.ID))

	require.NoError(test, store.InsertActivity(ctx, tontine.Activity{UserID: member.ID, Type: "login", Description: "login", CreatedAt: storeNow}))
	require.NoError(test, store.InsertActivity(ctx, tontine.Activity{UserID: member.ID, Type: "login", Description: "login", CreatedAt: storeNow.Add(-48 * time.Hour)}))
	recent, err := store.CountActivities(ctx, tontine.ActivityFilter{UserID: &member.ID, Since: storeNow.Add(-time.Hour)})
	require.NoError(test, err)
	require.Equal(test, int64(1), recent)

	require.NoError(test, store.DeleteGroup(ctx, group.ID))
	memberships, err := store.CountMemberships(ctx, member.ID)
	require.NoError(test, err)
	require.Zero(test, memberships)
	payments, err := store.ListPayments(ctx, tontine.LedgerFilter{UserID: &member.ID})
	require.NoError(test, err)
	require.Len(test, payments, 1)
}

// runServiceScenario drives the service end to end against a real database.
func runServiceScenario(test *testing.T, db *gorm.DB) {
	ctx := context.Background()
	service, err := tontine.NewService(New(db), func() time.Time { return storeNow }, tontine.WithPasswordHasher(tontine.NewBcryptHasher(4)))
	require.NoError(test, err)

	organizer := mustRegisterUser(test, service, "boss@example.com", "organizer")
	payer := mustRegisterUser(test, service, "payer@example.com", "participant")
	recipient := mustRegisterUser(test, service, "recipient@example.com", "participant")

	group, err := service.CreateGroup(ctx, organizer.ID, tontine.GroupKindTontine, tontine.GroupDraft{Name: "Weekly", Bareme: 5000})
	require.NoError(test, err)
	for _, member := range []tontine.User{payer, recipient} {
		_, err := service.JoinByToken(ctx, member.ID, tontine.GroupKindTontine, group.AccessToken)
		require.NoError(test, err)
	}

	_, err = service.RecordPayment(ctx, payer.ID, group.Ref(), 5000)
	require.NoError(test, err)
	_, err = service.RecordPayment(ctx, payer.ID, group.Ref(), 5000)
	require.ErrorIs(test, err, tontine.ErrAlreadyPaid)

	var waitGroup sync.WaitGroup
	results := make(chan error, 2)
	for attempt := 0; attempt < 2; attempt++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, distributeErr := service.DistributeFunds(ctx, organizer.ID, group.Ref(), recipient.ID, 3000)
			results <- distributeErr
		}()
	}
	waitGroup.Wait()
	close(results)
	succeeded := 0
	for result := range results {
		if result == nil {
			succeeded++
			continue
		}
		require.True(test, errors.Is(result, tontine.ErrInsufficientFunds), "unexpected error: %v", result)
	}
	require.Equal(test, 1, succeeded)

	balance, err := service.Balance(ctx, organizer.ID, group.Ref())
	require.NoError(test, err)
	require.Equal(test, tontine.Balance{TotalCollected: 5000, TotalDistributed: 3000, CurrentBalance: 2000}, balance)
	profile, err := service.Profile(ctx, organizer.ID)
	require.NoError(test, err)
	require.Equal(test, tontine.Amount(2000), profile.Balance)

	notifications, err := service.Notifications(ctx, recipient.ID)
	require.NoError(test, err)
	require.NotEmpty(test, notifications)
	require.Equal(test, "Funds received", notifications[0].Title)
}

func mustCreateUser(test *testing.T, store *Store, email string, role tontine.Role) tontine.User {
	test.Helper()
	user, err := store.CreateUser(context.Background(), tontine.User{
		LastName:     "Ndiaye",
		FirstName:    "Fatou",
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    storeNow,
		UpdatedAt:    storeNow,
	})
	require.NoError(test, err)
	return user
}

func mustRegisterUser(test *testing.T, service *tontine.Service, email string, role string) tontine.User {
	test.Helper()
	registration, err := tontine.NewRegistration("Ndiaye", "Fatou", email, "secret-pass", "", role)
	require.NoError(test, err)
	user, err := service.Register(context.Background(), registration)
	require.NoError(test, err)
	return user
}
