package tontine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) snapshot() []OperationLog {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	return append([]OperationLog(nil), logger.entries...)
}

func (logger *recorderLogger) has(operation string, status string) bool {
	for _, entry := range logger.snapshot() {
		if entry.Operation == operation && entry.Status == status {
			return true
		}
	}
	return false
}

func (logger *recorderLogger) last(operation string) (OperationLog, bool) {
	entries := logger.snapshot()
	for index := len(entries) - 1; index >= 0; index-- {
		if entries[index].Operation == operation {
			return entries[index], true
		}
	}
	return OperationLog{}, false
}

func TestServiceLogsDistributionOperation(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	fixture := newAccountingFixture(test, WithOperationLogger(logger))
	ctx := context.Background()
	if _, err := fixture.service.RecordPayment(ctx, fixture.first.ID, fixture.group.Ref(), 0); err != nil {
		test.Fatalf("record payment: %v", err)
	}
	if _, err := fixture.service.DistributeFunds(ctx, fixture.organizer.ID, fixture.group.Ref(), fixture.second.ID, mustPositiveAmount(test, 1200)); err != nil {
		test.Fatalf("distribute: %v", err)
	}
	entry, ok := logger.last(operationDistributeFunds)
	if !ok {
		test.Fatalf("expected distribution log entry")
	}
	if entry.UserID != fixture.organizer.ID || entry.GroupID != fixture.group.ID || entry.TargetID != fixture.second.ID || entry.Amount != 1200 {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Error != nil || entry.Status != operationStatusOK {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	fixture := newAccountingFixture(test, WithOperationLogger(logger))
	_, err := fixture.service.DistributeFunds(context.Background(), fixture.organizer.ID, fixture.group.Ref(), fixture.second.ID, mustPositiveAmount(test, 1))
	expectError(test, err, ErrInsufficientFunds)

	entry, ok := logger.last(operationDistributeFunds)
	if !ok {
		test.Fatalf("expected distribution log entry")
	}
	if entry.Status != operationStatusError || !errors.Is(entry.Error, ErrInsufficientFunds) {
		test.Fatalf("expected error log entry, got %+v", entry)
	}
}

func TestNewServiceRejectsMissingDependencies(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		store   Store
		now     bool
		options []ServiceOption
	}{
		{name: "nil store", store: nil, now: true},
		{name: "nil clock", store: newStubStore(), now: false},
		{name: "nil notifier", store: newStubStore(), now: true, options: []ServiceOption{WithNotifier(nil)}},
		{name: "nil hasher", store: newStubStore(), now: true, options: []ServiceOption{WithPasswordHasher(nil)}},
		{name: "nil token generator", store: newStubStore(), now: true, options: []ServiceOption{WithTokenGenerator(nil)}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			var clock func() time.Time
			if testCase.now {
				clock = func() time.Time { return fixedNow }
			}
			_, err := NewService(testCase.store, clock, testCase.options...)
			expectError(test, err, ErrInvalidServiceConfig)
		})
	}
}
