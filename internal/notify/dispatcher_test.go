package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mutex     sync.Mutex
	delivered []tontine.Notification
	gate      chan struct{}
	err       error
}

func (sink *recordingSink) Notify(ctx context.Context, notification tontine.Notification) error {
	if sink.gate != nil {
		<-sink.gate
	}
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.delivered = append(sink.delivered, notification)
	return sink.err
}

func (sink *recordingSink) count() int {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	return len(sink.delivered)
}

func mustDispatcher(test *testing.T, sink tontine.Notifier, logger *zap.Logger, buffer int) *Dispatcher {
	test.Helper()
	dispatcher, err := NewDispatcher(sink, logger, buffer)
	if err != nil {
		test.Fatalf("dispatcher: %v", err)
	}
	return dispatcher
}

func closeWithTimeout(test *testing.T, dispatcher *Dispatcher) {
	test.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := dispatcher.Close(ctx); err != nil {
		test.Fatalf("close: %v", err)
	}
}

func TestSynchronousDelivery(test *testing.T) {
	test.Parallel()
	sink := &recordingSink{err: errors.New("store down")}
	dispatcher := mustDispatcher(test, sink, nil, 0)
	dispatcher.Start()

	err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 1, Title: "Payment received"})
	if err == nil || err.Error() != "store down" {
		test.Fatalf("expected sink error to surface, got %v", err)
	}
	if sink.count() != 1 {
		test.Fatalf("expected immediate delivery, got %d", sink.count())
	}
	closeWithTimeout(test, dispatcher)
	if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 1}); !errors.Is(err, ErrClosed) {
		test.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseDrainsQueue(test *testing.T) {
	test.Parallel()
	sink := &recordingSink{}
	dispatcher := mustDispatcher(test, sink, nil, 8)
	dispatcher.Start()
	for index := 0; index < 5; index++ {
		if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: tontine.UserID(index + 1)}); err != nil {
			test.Fatalf("notify %d: %v", index, err)
		}
	}
	closeWithTimeout(test, dispatcher)
	if sink.count() != 5 {
		test.Fatalf("expected 5 deliveries after drain, got %d", sink.count())
	}
}

func TestCloseWithoutStartStillDrains(test *testing.T) {
	test.Parallel()
	sink := &recordingSink{}
	dispatcher := mustDispatcher(test, sink, nil, 2)
	if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 3}); err != nil {
		test.Fatalf("notify: %v", err)
	}
	closeWithTimeout(test, dispatcher)
	if sink.count() != 1 {
		test.Fatalf("expected queued notification to be delivered, got %d", sink.count())
	}
}

func TestFullQueueRejectsWithoutBlocking(test *testing.T) {
	test.Parallel()
	gate := make(chan struct{})
	sink := &recordingSink{gate: gate}
	dispatcher := mustDispatcher(test, sink, nil, 1)

	// Not started: the single slot fills and the next call must fail fast.
	if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 1}); err != nil {
		test.Fatalf("first notify: %v", err)
	}
	if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 2}); !errors.Is(err, ErrQueueFull) {
		test.Fatalf("expected ErrQueueFull, got %v", err)
	}
	close(gate)
	closeWithTimeout(test, dispatcher)
	if sink.count() != 1 {
		test.Fatalf("expected one delivery, got %d", sink.count())
	}
}

func TestWorkerLogsDeliveryFailures(test *testing.T) {
	test.Parallel()
	core, recorded := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{err: errors.New("insert failed")}
	dispatcher := mustDispatcher(test, sink, zap.New(core), 4)
	dispatcher.Start()
	if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 9, Title: "Funds received"}); err != nil {
		test.Fatalf("notify: %v", err)
	}
	closeWithTimeout(test, dispatcher)

	entries := recorded.FilterMessage("notification delivery failed").AllUntimed()
	if len(entries) != 1 {
		test.Fatalf("expected one warning, got %d", len(entries))
	}
	if entries[0].ContextMap()["user_id"] != int64(9) {
		test.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}

func TestNewDispatcherValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewDispatcher(nil, nil, 1); err == nil {
		test.Fatalf("expected error for nil sink")
	}
	if _, err := NewDispatcher(&recordingSink{}, nil, -1); err == nil {
		test.Fatalf("expected error for negative buffer")
	}
}

func TestCloseHonoursContext(test *testing.T) {
	test.Parallel()
	gate := make(chan struct{})
	sink := &recordingSink{gate: gate}
	dispatcher := mustDispatcher(test, sink, nil, 1)
	dispatcher.Start()
	if err := dispatcher.Notify(context.Background(), tontine.Notification{UserID: 1}); err != nil {
		test.Fatalf("notify: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := dispatcher.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		test.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(gate)
	closeWithTimeout(test, dispatcher)
}
