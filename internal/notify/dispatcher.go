package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the buffer cannot take another notification.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned by Notify after Close.
	ErrClosed = errors.New("notification dispatcher closed")
)

// Dispatcher delivers notifications to a sink on a background worker.
// A zero buffer delivers synchronously on the caller's goroutine.
type Dispatcher struct {
	sink      tontine.Notifier
	logger    *zap.Logger
	queue     chan tontine.Notification
	stateLock sync.RWMutex
	closed    bool
	startOnce sync.Once
	done      chan struct{}
}

// NewDispatcher wires a dispatcher in front of sink.
func NewDispatcher(sink tontine.Notifier, logger *zap.Logger, buffer int) (*Dispatcher, error) {
	if sink == nil {
		return nil, fmt.Errorf("notify: sink is nil")
	}
	if buffer < 0 {
		return nil, fmt.Errorf("notify: buffer must not be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := &Dispatcher{
		sink:   sink,
		logger: logger.Named("notify"),
		done:   make(chan struct{}),
	}
	if buffer > 0 {
		dispatcher.queue = make(chan tontine.Notification, buffer)
	}
	return dispatcher, nil
}

// Start launches the worker. Calling it more than once is harmless.
func (dispatcher *Dispatcher) Start() {
	dispatcher.startOnce.Do(func() {
		if dispatcher.queue == nil {
			close(dispatcher.done)
			return
		}
		go dispatcher.run()
	})
}

// Notify implements tontine.Notifier. It never blocks on a full buffer.
func (dispatcher *Dispatcher) Notify(ctx context.Context, notification tontine.Notification) error {
	dispatcher.stateLock.RLock()
	defer dispatcher.stateLock.RUnlock()
	if dispatcher.closed {
		return ErrClosed
	}
	if dispatcher.queue == nil {
		return dispatcher.sink.Notify(ctx, notification)
	}
	select {
	case dispatcher.queue <- notification:
		return nil
	default:
		return fmt.Errorf("%w: user %d", ErrQueueFull, notification.UserID.Int64())
	}
}

// Close stops accepting notifications and waits until queued ones are delivered
// or ctx expires.
func (dispatcher *Dispatcher) Close(ctx context.Context) error {
	dispatcher.stateLock.Lock()
	if !dispatcher.closed {
		dispatcher.closed = true
		if dispatcher.queue != nil {
			close(dispatcher.queue)
		}
	}
	dispatcher.stateLock.Unlock()
	dispatcher.Start()

	select {
	case <-dispatcher.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (dispatcher *Dispatcher) run() {
	defer close(dispatcher.done)
	for notification := range dispatcher.queue {
		if err := dispatcher.sink.Notify(context.Background(), notification); err != nil {
			dispatcher.logger.Warn("notification delivery failed",
				zap.Int64("user_id", notification.UserID.Int64()),
				zap.String("title", notification.Title),
				zap.Error(err),
			)
		}
	}
}
